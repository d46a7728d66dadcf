// Package mining implements the ICP mining pipeline: job selection, page
// processing, per-candidate enrichment, and the orchestrator that drives a
// job through paginated search results with crash-safe progress.
package mining

import "github.com/sells-group/icp-miner/internal/model"

// SelectNext picks the single best job to advance, or nil when no job is
// eligible. Running jobs beat pending ones so in-flight work resumes before
// new work starts. Within a tier, more remaining targets rank first; a job
// whose total is still unknown is treated as unbounded so its first page runs
// early and bootstraps measurement. Tie order is unspecified.
func SelectNext(jobs []model.MiningJob) *model.MiningJob {
	var best *model.MiningJob
	for i := range jobs {
		j := &jobs[i]
		if j.Status != model.JobStatusPending && j.Status != model.JobStatusRunning {
			continue
		}
		if best == nil || ranksAbove(j, best) {
			best = j
		}
	}
	return best
}

func ranksAbove(a, b *model.MiningJob) bool {
	if a.Status != b.Status {
		return a.Status == model.JobStatusRunning
	}

	aRem, aKnown := a.Remaining()
	bRem, bKnown := b.Remaining()
	switch {
	case !aKnown && !bKnown:
		return false
	case !aKnown:
		return true
	case !bKnown:
		return false
	default:
		return aRem > bRem
	}
}
