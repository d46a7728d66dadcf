package model

// MineRequest is the argument to the mining entry point. Either JobID
// (single-job mode) or SiteID with Batch set (batch mode).
type MineRequest struct {
	JobID    string `json:"job_id,omitempty"`
	SiteID   string `json:"site_id,omitempty"`
	Batch    bool   `json:"batch,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
	// TargetLeads stops a run once this many leads with a validated email
	// have been found.
	TargetLeads int     `json:"target_leads_with_email,omitempty"`
	SegmentID   *string `json:"segment_id,omitempty"`
}

// MineResult is the aggregated outcome of one orchestrator invocation.
// Callers always receive an explicit success flag, numeric counts, and an
// errors array; an empty batch is success with zero counts.
type MineResult struct {
	Success      bool     `json:"success"`
	JobID        string   `json:"job_id,omitempty"`
	Processed    int      `json:"processed"`
	FoundMatches int      `json:"found_matches"`
	TotalTargets *int     `json:"total_targets,omitempty"`
	LeadsCreated []string `json:"leads_created,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}
