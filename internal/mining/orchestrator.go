package mining

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/config"
	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/store"
)

// Orchestrator drives mining jobs: it resolves which job to run, advances it
// page by page, and finalizes its status. One invocation advances at most one
// job, so callers bound a run's duration by re-invoking.
type Orchestrator struct {
	st      store.Store
	tracker ProgressTracker
	pages   *PageProcessor
	cfg     config.MiningConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(st store.Store, tracker ProgressTracker, pages *PageProcessor, cfg config.MiningConfig) *Orchestrator {
	return &Orchestrator{st: st, tracker: tracker, pages: pages, cfg: cfg}
}

// Mine is the pipeline entry point. Single-job mode runs the named job; batch
// mode selects one job among the site's pending ones. An empty batch is
// success with zero counts.
func (o *Orchestrator) Mine(ctx context.Context, req model.MineRequest) *model.MineResult {
	if req.JobID != "" {
		return o.mineJob(ctx, req)
	}
	if req.Batch && req.SiteID != "" {
		return o.mineBatch(ctx, req)
	}
	return &model.MineResult{
		Success: false,
		Errors:  []string{"request needs job_id, or site_id with batch=true"},
	}
}

func (o *Orchestrator) mineJob(ctx context.Context, req model.MineRequest) *model.MineResult {
	job, err := o.st.GetJob(ctx, req.JobID)
	if err != nil {
		return &model.MineResult{
			JobID:  req.JobID,
			Errors: []string{fmt.Sprintf("load job %s: %v", req.JobID, err)},
		}
	}
	if job == nil {
		msg := fmt.Sprintf("job %s not found", req.JobID)
		if err := o.tracker.MarkCompleted(ctx, req.JobID, true, msg); err != nil {
			zap.L().Warn("finalize missing job failed", zap.String("job_id", req.JobID), zap.Error(err))
		}
		return &model.MineResult{JobID: req.JobID, Errors: []string{msg}}
	}
	// A running job may resume in place; anything else must be able to
	// transition into running.
	if job.Status != model.JobStatusRunning && !model.CanTransition(job.Status, model.JobStatusRunning) {
		return &model.MineResult{
			JobID:  job.ID,
			Errors: []string{fmt.Sprintf("job %s already %s", job.ID, job.Status)},
		}
	}

	return o.advance(ctx, job, req)
}

func (o *Orchestrator) mineBatch(ctx context.Context, req model.MineRequest) *model.MineResult {
	jobs, err := o.st.ListPendingJobs(ctx, req.SiteID, o.cfg.PendingJobsLimit)
	if err != nil {
		return &model.MineResult{
			Errors: []string{fmt.Sprintf("list jobs for site %s: %v", req.SiteID, err)},
		}
	}

	job := SelectNext(jobs)
	if job == nil {
		// Nothing to do is a normal outcome for a drained site.
		return &model.MineResult{Success: true}
	}

	return o.advance(ctx, job, req)
}

// advance runs one job's page loop from its persisted current page. Progress
// is persisted after every page, so a crash resumes at the next unfetched
// page.
func (o *Orchestrator) advance(ctx context.Context, job *model.MiningJob, req model.MineRequest) *model.MineResult {
	result := &model.MineResult{JobID: job.ID, TotalTargets: job.TotalTargets}

	if err := o.tracker.MarkStarted(ctx, job.ID); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("mark started: %v", err))
		return result
	}

	pageSize := o.cfg.PageSize
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}
	maxPages := o.cfg.MaxPages
	if req.MaxPages > 0 {
		maxPages = req.MaxPages
	}
	target := o.cfg.TargetLeads
	if req.TargetLeads > 0 {
		target = req.TargetLeads
	}

	found := job.FoundTargets
	pagesRun := 0

	for page := job.CurrentPage; ; page++ {
		if pagesRun >= maxPages {
			zap.L().Info("page ceiling reached",
				zap.String("job_id", job.ID),
				zap.Int("pages", pagesRun),
			)
			break
		}

		pr, err := o.pages.Process(ctx, job, page, pageSize, req)
		if err != nil {
			// Fail fast: a page-level failure surfaces collaborator outages
			// instead of burning the remaining pages against them. Progress
			// already persisted stays.
			msg := fmt.Sprintf("page %d: %v", page, err)
			result.Errors = append(result.Errors, msg)
			o.finalize(ctx, job.ID, true, msg)
			return result
		}

		pagesRun++
		result.Processed += pr.Processed
		result.FoundMatches += pr.FoundMatches
		result.LeadsCreated = append(result.LeadsCreated, pr.LeadIDs...)
		result.Errors = append(result.Errors, pr.Errors...)
		found += pr.FoundMatches

		delta := store.ProgressDelta{
			Processed:   pr.Processed,
			Found:       pr.FoundMatches,
			CurrentPage: intPtr(page + 1),
		}
		if pr.Total != nil {
			delta.TotalTargets = pr.Total
			result.TotalTargets = pr.Total
		}
		if len(pr.Errors) > 0 {
			delta.LastError = strPtr(pr.Errors[len(pr.Errors)-1])
		}
		if err := o.tracker.Update(ctx, job.ID, delta); err != nil {
			// Losing the checkpoint would reprocess this page on resume;
			// stop here rather than drift.
			msg := fmt.Sprintf("persist progress page %d: %v", page, err)
			result.Errors = append(result.Errors, msg)
			o.finalize(ctx, job.ID, true, msg)
			return result
		}

		if !pr.HasMore {
			break
		}
		if found >= target {
			zap.L().Info("lead target reached",
				zap.String("job_id", job.ID),
				zap.Int("found", found),
				zap.Int("target", target),
			)
			break
		}
	}

	// Exhaustion, target, and page ceiling all finalize completed: the
	// ceiling bounds one run's cost, it is not a defect of the job.
	o.finalize(ctx, job.ID, false, "")
	result.Success = true
	return result
}

func (o *Orchestrator) finalize(ctx context.Context, jobID string, failed bool, lastError string) {
	if err := o.tracker.MarkCompleted(ctx, jobID, failed, lastError); err != nil {
		zap.L().Error("finalize job failed",
			zap.String("job_id", jobID),
			zap.Bool("failed", failed),
			zap.Error(err),
		)
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
