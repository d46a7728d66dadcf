package mining

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/prospect"
)

func newProcessor(t *testing.T, search prospect.Client, valid map[string]bool) (*PageProcessor, *stubVerifier) {
	t.Helper()
	st := newTestStore(t)
	seedProfile(t, st, "prof-1", "site-a")
	wf, v := newTestWaterfall(valid)
	return NewPageProcessor(st, search, NewEnricher(st, wf, nil)), v
}

func intp(n int) *int { return &n }

func TestProcessPageZeroMixedCandidates(t *testing.T) {
	// One candidate with a pre-existing valid email, one with no email, no
	// phone, and a failing generation stage.
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {
			Results: []prospect.Result{
				searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io"),
				searchResult("ext-2", "John Roe", "Beta LLC", ""),
			},
			Total:   intp(2),
			HasMore: false,
		},
	}}

	st := newTestStore(t)
	seedProfile(t, st, "prof-1", "site-a")
	gen := &failingSource{name: "generated"}
	wf, _ := newTestWaterfall(map[string]bool{"jane@acme.io": true}, gen)
	p := NewPageProcessor(st, search, NewEnricher(st, wf, nil))

	job := testJob("job-1", "site-a", "prof-1")
	pr, err := p.Process(context.Background(), job, 0, 25, model.MineRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, pr.Processed)
	assert.Equal(t, 1, pr.FoundMatches)
	assert.Len(t, pr.LeadIDs, 1)
	require.NotNil(t, pr.Total)
	assert.Equal(t, 2, *pr.Total)
	assert.False(t, pr.HasMore)
}

func TestProcessPassesProfileCriteriaAndPaging(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{}}
	p, _ := newProcessor(t, search, nil)

	job := testJob("job-1", "site-a", "prof-1")
	_, err := p.Process(context.Background(), job, 3, 10, model.MineRequest{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, search.requests, 1)
	req := search.requests[0]
	assert.Equal(t, []string{"VP Sales"}, req.Titles)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 10, req.PageSize)
	assert.Equal(t, "site-a", req.SiteID)
	assert.Equal(t, "user-1", req.UserID)
}

func TestProcessTotalOnlyCapturedOnPageZero(t *testing.T) {
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		1: {Total: intp(99), HasMore: true},
	}}
	p, _ := newProcessor(t, search, nil)

	pr, err := p.Process(context.Background(), testJob("job-1", "site-a", "prof-1"), 1, 25, model.MineRequest{})
	require.NoError(t, err)
	assert.Nil(t, pr.Total)
	assert.True(t, pr.HasMore)
}

func TestProcessMissingProfileFailsPage(t *testing.T) {
	st := newTestStore(t)
	wf, _ := newTestWaterfall(nil)
	p := NewPageProcessor(st, &fakeSearch{}, NewEnricher(st, wf, nil))

	_, err := p.Process(context.Background(), testJob("job-1", "site-a", "missing"), 0, 25, model.MineRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProcessFetchFailureFailsPage(t *testing.T) {
	search := &fakeSearch{failPage: map[int]error{0: assert.AnError}}
	p, _ := newProcessor(t, search, nil)

	_, err := p.Process(context.Background(), testJob("job-1", "site-a", "prof-1"), 0, 25, model.MineRequest{})
	require.Error(t, err)
}

func TestProcessCandidateFailureDoesNotAbortPage(t *testing.T) {
	// Duplicate-identity race is not reproducible here; instead a candidate
	// whose waterfall source fails outright still counts as processed and the
	// page continues.
	search := &fakeSearch{pages: map[int]*prospect.SearchResponse{
		0: {
			Results: []prospect.Result{
				searchResult("ext-1", "Jane Doe", "Acme", "acme.io"),
				searchResult("ext-2", "John Roe", "Beta", "beta.io", "john@beta.io"),
			},
			HasMore: false,
		},
	}}

	st := newTestStore(t)
	seedProfile(t, st, "prof-1", "site-a")
	wf, _ := newTestWaterfall(map[string]bool{"john@beta.io": true})
	p := NewPageProcessor(st, search, NewEnricher(st, wf, nil))

	pr, err := p.Process(context.Background(), testJob("job-1", "site-a", "prof-1"), 0, 25, model.MineRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, pr.Processed)
	assert.Equal(t, 1, pr.FoundMatches)
}
