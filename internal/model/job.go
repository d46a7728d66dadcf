// Package model defines the domain types shared across the mining pipeline.
package model

import (
	"time"
)

// JobStatus represents the lifecycle state of a mining job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// CanTransition reports whether a job may move from one status to another.
// Valid transitions: pending->running, running->completed, running->failed.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// MiningJob tracks progress through paginated search results for one ICP
// profile. Jobs are created externally (pre-seeded) and owned by the
// orchestrator for status and progress updates.
type MiningJob struct {
	ID               string    `json:"id"`
	SiteID           string    `json:"site_id"`
	ProfileID        string    `json:"profile_id"`
	Status           JobStatus `json:"status"`
	TotalTargets     *int      `json:"total_targets,omitempty"` // nil until discovered on page 0
	ProcessedTargets int       `json:"processed_targets"`
	FoundTargets     int       `json:"found_targets"`
	CurrentPage      int       `json:"current_page"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Remaining returns the number of targets left to process, and whether that
// number is known. A job whose total has not yet been discovered reports
// unknown so the selector can prioritize it to bootstrap measurement.
func (j *MiningJob) Remaining() (int, bool) {
	if j.TotalTargets == nil {
		return 0, false
	}
	r := *j.TotalTargets - j.ProcessedTargets
	if r < 0 {
		r = 0
	}
	return r, true
}

// ICPProfile is a structured target-persona definition used as search
// criteria for a mining job.
type ICPProfile struct {
	ID            string    `json:"id"`
	SiteID        string    `json:"site_id"`
	Name          string    `json:"name"`
	Titles        []string  `json:"titles,omitempty"`
	Seniorities   []string  `json:"seniorities,omitempty"`
	Locations     []string  `json:"locations,omitempty"`
	Industries    []string  `json:"industries,omitempty"`
	EmployeeRange string    `json:"employee_range,omitempty"`
	Keywords      string    `json:"keywords,omitempty"`
	NotionPageID  string    `json:"notion_page_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
