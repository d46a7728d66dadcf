package mining

import (
	"context"

	"github.com/sells-group/icp-miner/internal/store"
)

// ProgressTracker persists job lifecycle and progress. Counters are deltas
// applied atomically in storage, so a crash between pages loses nothing
// already recorded.
type ProgressTracker interface {
	MarkStarted(ctx context.Context, jobID string) error
	Update(ctx context.Context, jobID string, delta store.ProgressDelta) error
	MarkCompleted(ctx context.Context, jobID string, failed bool, lastError string) error
}

type storeTracker struct {
	st store.Store
}

// NewTracker returns a ProgressTracker backed by the store.
func NewTracker(st store.Store) ProgressTracker {
	return &storeTracker{st: st}
}

func (t *storeTracker) MarkStarted(ctx context.Context, jobID string) error {
	return t.st.MarkJobStarted(ctx, jobID)
}

func (t *storeTracker) Update(ctx context.Context, jobID string, delta store.ProgressDelta) error {
	return t.st.UpdateJobProgress(ctx, jobID, delta)
}

func (t *storeTracker) MarkCompleted(ctx context.Context, jobID string, failed bool, lastError string) error {
	return t.st.MarkJobCompleted(ctx, jobID, failed, lastError)
}
