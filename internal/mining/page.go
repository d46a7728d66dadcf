package mining

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/resilience"
	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/pkg/prospect"
)

// PageResult aggregates one page of work.
type PageResult struct {
	Processed    int
	FoundMatches int
	LeadIDs      []string
	HasMore      bool
	Total        *int // populated on page 0 only
	Errors       []string
}

// PageProcessor fetches one page of candidates and runs enrichment over each.
// A fetch failure fails the page; a candidate failure only lands in the error
// list.
type PageProcessor struct {
	st       store.Store
	search   prospect.Client
	enricher *Enricher
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
}

// NewPageProcessor creates a PageProcessor. The circuit breaker guards the
// search collaborator across pages and jobs.
func NewPageProcessor(st store.Store, search prospect.Client, enricher *Enricher) *PageProcessor {
	return &PageProcessor{
		st:       st,
		search:   search,
		enricher: enricher,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:    resilience.DefaultRetryConfig(),
	}
}

// Process fetches and enriches page `page` of the job's search. The returned
// error means the page itself failed (profile missing or fetch failed); the
// caller finalizes the job's run.
func (p *PageProcessor) Process(ctx context.Context, job *model.MiningJob, page, pageSize int, req model.MineRequest) (*PageResult, error) {
	profile, err := p.st.GetProfile(ctx, job.ProfileID)
	if err != nil {
		return nil, eris.Wrapf(err, "load profile %s", job.ProfileID)
	}
	if profile == nil {
		return nil, eris.Errorf("profile %s not found", job.ProfileID)
	}

	resp, err := p.fetch(ctx, profile, page, pageSize, req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch page %d", page)
	}

	result := &PageResult{HasMore: resp.HasMore}
	if page == 0 {
		result.Total = resp.Total
	}

	for i := range resp.Results {
		candidate := CandidateFromResult(&resp.Results[i], job.SiteID)

		er := p.enricher.Enrich(ctx, &candidate, job, req)
		result.Processed++
		result.Errors = append(result.Errors, er.Errors...)
		if er.Matched {
			result.FoundMatches++
			result.LeadIDs = append(result.LeadIDs, er.LeadID)
		}

		if ctx.Err() != nil {
			return result, eris.Wrap(ctx.Err(), "page interrupted")
		}
	}

	zap.L().Info("page processed",
		zap.String("job_id", job.ID),
		zap.Int("page", page),
		zap.Int("processed", result.Processed),
		zap.Int("found", result.FoundMatches),
		zap.Bool("has_more", result.HasMore),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// fetch calls the search collaborator for exactly one page, retrying
// transient failures behind the shared circuit breaker.
func (p *PageProcessor) fetch(ctx context.Context, profile *model.ICPProfile, page, pageSize int, req model.MineRequest) (*prospect.SearchResponse, error) {
	searchReq := prospect.SearchRequest{
		Titles:        profile.Titles,
		Seniorities:   profile.Seniorities,
		Locations:     profile.Locations,
		Industries:    profile.Industries,
		EmployeeRange: profile.EmployeeRange,
		Keywords:      profile.Keywords,
		Page:          page,
		PageSize:      pageSize,
		SiteID:        profile.SiteID,
		UserID:        req.UserID,
	}

	var resp *prospect.SearchResponse
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*prospect.SearchResponse, error) {
			return p.search.Search(ctx, searchReq)
		})
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "search site=%s page=%d", profile.SiteID, page)
	}
	return resp, nil
}
