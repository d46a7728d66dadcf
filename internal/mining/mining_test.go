package mining

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-miner/internal/config"
	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/internal/waterfall"
	"github.com/sells-group/icp-miner/internal/waterfall/source"
	"github.com/sells-group/icp-miner/pkg/prospect"
	"github.com/sells-group/icp-miner/pkg/verify"
)

// --- store fixture ---

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedProfile(t *testing.T, st store.Store, id, siteID string) {
	t.Helper()
	require.NoError(t, st.UpsertProfile(context.Background(), &model.ICPProfile{
		ID:     id,
		SiteID: siteID,
		Name:   "Test Profile",
		Titles: []string{"VP Sales"},
	}))
}

func seedJob(t *testing.T, st store.Store, job *model.MiningJob) {
	t.Helper()
	require.NoError(t, st.CreateJob(context.Background(), job))
}

// --- waterfall fixture ---

// stubVerifier approves exactly the addresses in its set.
type stubVerifier struct {
	valid map[string]bool
	calls []string
}

func (v *stubVerifier) Validate(_ context.Context, address string) (*verify.Validation, error) {
	v.calls = append(v.calls, address)
	ok := v.valid[address]
	result := "undeliverable"
	if ok {
		result = "deliverable"
	}
	return &verify.Validation{Address: address, IsValid: ok, Deliverable: ok, Result: result}, nil
}

// failingSource simulates a collaborator outage in one waterfall stage.
type failingSource struct {
	name  string
	calls int
}

func (s *failingSource) Name() string    { return s.name }
func (s *failingSource) Discovers() bool { return false }

func (s *failingSource) Candidates(context.Context, *model.Candidate, []string) ([]string, error) {
	s.calls++
	return nil, context.DeadlineExceeded
}

// newTestWaterfall builds an executor over the raw source plus any extra
// sources, approving the given addresses.
func newTestWaterfall(valid map[string]bool, extra ...source.Source) (*waterfall.Executor, *stubVerifier) {
	reg := source.NewRegistry()
	reg.Register(source.NewRaw())
	cfg := &waterfall.Config{
		Chain:    []waterfall.SourceConfig{{Name: "raw"}},
		Validate: waterfall.ValidateConfig{MaxAttempts: 1, BackoffBaseMS: 1, MaxCandidates: 10},
	}
	for _, s := range extra {
		reg.Register(s)
		cfg.Chain = append(cfg.Chain, waterfall.SourceConfig{Name: s.Name()})
	}
	v := &stubVerifier{valid: valid}
	return waterfall.NewExecutor(cfg, reg, v), v
}

// --- search fixture ---

// fakeSearch serves canned pages keyed by page index and records requests.
type fakeSearch struct {
	pages    map[int]*prospect.SearchResponse
	failPage map[int]error
	requests []prospect.SearchRequest
}

func (f *fakeSearch) Search(_ context.Context, req prospect.SearchRequest) (*prospect.SearchResponse, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.failPage[req.Page]; ok {
		return nil, err
	}
	if resp, ok := f.pages[req.Page]; ok {
		return resp, nil
	}
	return &prospect.SearchResponse{HasMore: false}, nil
}

func searchResult(personID, name, company, domain string, emails ...string) prospect.Result {
	return prospect.Result{
		Person: prospect.Person{
			ID:       personID,
			FullName: name,
			Emails:   emails,
		},
		Organization: prospect.Organization{
			Name:   company,
			Domain: domain,
		},
		RoleID:    personID + "-role",
		RoleTitle: "VP Sales",
		IsCurrent: true,
	}
}

func testMiningConfig() config.MiningConfig {
	return config.MiningConfig{
		PageSize:         25,
		MaxPages:         20,
		TargetLeads:      40,
		PendingJobsLimit: 50,
	}
}
