package mining

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-miner/internal/config"
	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/pkg/prospect"
)

func newOrchestrator(t *testing.T, search prospect.Client, valid map[string]bool, cfg config.MiningConfig) (*Orchestrator, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	seedProfile(t, st, "prof-1", "site-a")
	wf, _ := newTestWaterfall(valid)
	pages := NewPageProcessor(st, search, NewEnricher(st, wf, nil))
	return NewOrchestrator(st, NewTracker(st), pages, cfg), st
}

func pendingJob(id string) *model.MiningJob {
	return &model.MiningJob{
		ID:        id,
		SiteID:    "site-a",
		ProfileID: "prof-1",
		Status:    model.JobStatusPending,
	}
}

func TestMineRunsJobToExhaustion(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {
			Results: []prospect.Result{
				searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io"),
				searchResult("ext-2", "John Roe", "Beta", "beta.io", "john@beta.io"),
			},
			Total:   intp(3),
			HasMore: true,
		},
		1: {
			Results: []prospect.Result{
				searchResult("ext-3", "Ann Poe", "Gamma", "gamma.io", "ann@gamma.io"),
			},
			HasMore: false,
		},
	}}
	o, st := newOrchestrator(t, search, map[string]bool{
		"jane@acme.io": true,
		"ann@gamma.io": true,
	}, testMiningConfig())

	seedJob(t, st, pendingJob("job-1"))
	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})

	assert.True(t, res.Success)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.FoundMatches)
	assert.Len(t, res.LeadsCreated, 2)
	require.NotNil(t, res.TotalTargets)
	assert.Equal(t, 3, *res.TotalTargets)

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.ProcessedTargets)
	assert.Equal(t, 2, job.FoundTargets)
	assert.Equal(t, 2, job.CurrentPage)
	require.NotNil(t, job.TotalTargets)
	assert.Equal(t, 3, *job.TotalTargets)
}

func TestMineProcessedNeverExceedsReportedTotal(t *testing.T) {
	// The search announces a total of 1 on page 0 but hands back two rows.
	// The persisted counter must stop at the announced total.
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {
			Results: []prospect.Result{
				searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io"),
				searchResult("ext-2", "John Roe", "Beta", "beta.io", "john@beta.io"),
			},
			Total:   intp(1),
			HasMore: false,
		},
	}}
	o, st := newOrchestrator(t, search, map[string]bool{"jane@acme.io": true}, testMiningConfig())

	seedJob(t, st, pendingJob("job-1"))
	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})

	assert.True(t, res.Success)
	// The in-memory result still reports the work actually done.
	assert.Equal(t, 2, res.Processed)

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job.TotalTargets)
	assert.Equal(t, 1, *job.TotalTargets)
	assert.LessOrEqual(t, job.ProcessedTargets, *job.TotalTargets)
}

func TestMinePageFailureFinalizesFailedKeepsProgress(t *testing.T) {
	search := &fakeSearch{
		pages: map[int]*prospect.SearchResponse{
			0: {
				Results: []prospect.Result{
					searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io"),
				},
				HasMore: true,
			},
		},
		failPage: map[int]error{1: assert.AnError},
	}
	o, st := newOrchestrator(t, search, map[string]bool{"jane@acme.io": true}, testMiningConfig())

	seedJob(t, st, pendingJob("job-1"))
	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})

	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[len(res.Errors)-1], "page 1")
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.FoundMatches)

	// Page 0 progress survives the page 1 failure.
	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.ProcessedTargets)
	assert.Equal(t, 1, job.FoundTargets)
	assert.Equal(t, 1, job.CurrentPage)
}

func TestMineResumesFromPersistedPage(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		2: {
			Results: []prospect.Result{
				searchResult("ext-9", "Ann Poe", "Gamma", "gamma.io", "ann@gamma.io"),
			},
			HasMore: false,
		},
	}}
	o, st := newOrchestrator(t, search, map[string]bool{"ann@gamma.io": true}, testMiningConfig())

	job := pendingJob("job-1")
	job.CurrentPage = 2
	job.ProcessedTargets = 50
	job.FoundTargets = 5
	seedJob(t, st, job)

	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})
	assert.True(t, res.Success)

	require.Len(t, search.requests, 1)
	assert.Equal(t, 2, search.requests[0].Page)

	stored, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 51, stored.ProcessedTargets)
	assert.Equal(t, 6, stored.FoundTargets)
	assert.Equal(t, 3, stored.CurrentPage)
}

func TestMineStopsAtLeadTarget(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {
			Results: []prospect.Result{
				searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io"),
			},
			HasMore: true,
		},
	}}
	o, st := newOrchestrator(t, search, map[string]bool{"jane@acme.io": true}, testMiningConfig())

	seedJob(t, st, pendingJob("job-1"))
	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1", TargetLeads: 1})

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.FoundMatches)
	// Page 1 was never fetched.
	require.Len(t, search.requests, 1)

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestMinePageCeilingFinalizesCompleted(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {HasMore: true},
		1: {HasMore: true},
	}}
	cfg := testMiningConfig()
	cfg.MaxPages = 2
	o, st := newOrchestrator(t, search, nil, cfg)

	seedJob(t, st, pendingJob("job-1"))
	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})

	assert.True(t, res.Success)
	assert.Len(t, search.requests, 2)

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.CurrentPage)
}

func TestMineMissingJobFinalizedFailed(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeSearch{}, nil, testMiningConfig())

	res := o.Mine(context.Background(), model.MineRequest{JobID: "ghost"})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "not found")
	assert.Zero(t, res.Processed)
}

func TestMineTerminalJobRejected(t *testing.T) {
	o, st := newOrchestrator(t, &fakeSearch{}, nil, testMiningConfig())

	job := pendingJob("job-1")
	job.Status = model.JobStatusCompleted
	seedJob(t, st, job)

	res := o.Mine(context.Background(), model.MineRequest{JobID: "job-1"})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "already completed")
}

func TestMineBatchEmptySiteSucceedsWithZeroCounts(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeSearch{}, nil, testMiningConfig())

	res := o.Mine(context.Background(), model.MineRequest{SiteID: "site-a", Batch: true})
	assert.True(t, res.Success)
	assert.Zero(t, res.Processed)
	assert.Empty(t, res.Errors)
}

func TestMineBatchPrefersRunningJob(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{}}
	o, st := newOrchestrator(t, search, nil, testMiningConfig())

	seedJob(t, st, pendingJob("job-pending"))
	running := pendingJob("job-running")
	running.Status = model.JobStatusRunning
	seedJob(t, st, running)

	res := o.Mine(context.Background(), model.MineRequest{SiteID: "site-a", Batch: true})
	assert.True(t, res.Success)
	assert.Equal(t, "job-running", res.JobID)
}

func TestMineRequestWithoutSelectorFails(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeSearch{}, nil, testMiningConfig())

	res := o.Mine(context.Background(), model.MineRequest{})
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
}
