package mining

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/internal/waterfall"
)

// EnrichResult is the outcome for one candidate. Matched is true only when a
// new lead was created in this call.
type EnrichResult struct {
	Matched bool
	LeadID  string
	Errors  []string
}

// LeadMirror pushes a created lead to an external CRM. Mirroring is a
// post-success side effect: failures are logged, never propagated.
type LeadMirror interface {
	Mirror(ctx context.Context, lead *model.Lead) error
}

// Enricher resolves a candidate's identity, sources a validated email through
// the waterfall, and creates a lead idempotently. No error escapes Enrich;
// everything lands in the result's error list.
type Enricher struct {
	st        store.Store
	waterfall *waterfall.Executor
	mirror    LeadMirror // nil disables CRM mirroring
}

// NewEnricher creates an Enricher. mirror may be nil.
func NewEnricher(st store.Store, wf *waterfall.Executor, mirror LeadMirror) *Enricher {
	return &Enricher{st: st, waterfall: wf, mirror: mirror}
}

// Enrich processes one candidate for the given job.
func (e *Enricher) Enrich(ctx context.Context, c *model.Candidate, job *model.MiningJob, req model.MineRequest) EnrichResult {
	var res EnrichResult

	person, err := e.resolveIdentity(ctx, c)
	if err != nil {
		// Without an identity row nothing downstream can be keyed; fatal for
		// this candidate only.
		res.Errors = append(res.Errors, fmt.Sprintf("identity %s: %v", c.FullName, err))
		return res
	}

	email := e.resolveEmail(ctx, c, person, &res)

	if email == "" && len(person.Phones) == 0 {
		// Processed but unreachable on any channel; not a match.
		zap.L().Debug("candidate has no contact channel",
			zap.String("person", c.FullName),
			zap.String("job_id", job.ID),
		)
		return res
	}

	existing, err := e.st.FindLead(ctx, person.ID, job.SiteID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("lead lookup %s: %v", person.ID, err))
		return res
	}
	if existing != nil {
		return res
	}

	companyID := e.upsertCompany(ctx, c, job.SiteID)

	lead := &model.Lead{
		SiteID:      job.SiteID,
		PersonID:    person.ID,
		CompanyID:   companyID,
		SegmentID:   req.SegmentID,
		FullName:    person.FullName,
		Email:       email,
		CompanyName: c.CompanyName,
		RoleTitle:   c.RoleTitle,
		Location:    c.Location,
		LinkedInURL: c.LinkedInURL,
		Metadata: map[string]string{
			"source":     model.LeadSourceICPMining,
			"profile_id": job.ProfileID,
			"job_id":     job.ID,
		},
	}
	if email == "" && len(person.Phones) > 0 {
		lead.Phone = person.Phones[0]
	}

	if err := e.st.CreateLead(ctx, lead); err != nil {
		if eris.Is(err, store.ErrDuplicateLead) {
			// Lost a race with a concurrent run; the lead exists, which is
			// the idempotent outcome the check above aims for.
			return res
		}
		res.Errors = append(res.Errors, fmt.Sprintf("create lead %s: %v", person.ID, err))
		return res
	}

	res.Matched = true
	res.LeadID = lead.ID

	if e.mirror != nil {
		if err := e.mirror.Mirror(ctx, lead); err != nil {
			zap.L().Warn("lead mirror failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
		}
	}

	return res
}

// resolveIdentity finds or creates the durable person record for a candidate.
func (e *Enricher) resolveIdentity(ctx context.Context, c *model.Candidate) (*model.Person, error) {
	if c.ExternalPersonID != "" || c.ExternalRoleID != "" {
		p, err := e.st.FindPersonByExternalID(ctx, c.ExternalPersonID, c.ExternalRoleID)
		if err != nil {
			return nil, eris.Wrap(err, "find by external id")
		}
		if p != nil {
			return p, nil
		}
	}

	key := NormalizedKey(c.FullName, c.CompanyName)
	if key != "" {
		p, err := e.st.FindPersonByNameCompany(ctx, key)
		if err != nil {
			return nil, eris.Wrap(err, "find by name+company")
		}
		if p != nil {
			return p, nil
		}
	}

	p := &model.Person{
		ExternalID:     c.ExternalPersonID,
		ExternalRoleID: c.ExternalRoleID,
		FullName:       c.FullName,
		NormalizedKey:  key,
		CompanyName:    c.CompanyName,
		RoleTitle:      c.RoleTitle,
		Location:       c.Location,
		LinkedInURL:    c.LinkedInURL,
		Emails:         c.Emails,
	}
	if err := e.st.UpsertPerson(ctx, p); err != nil {
		return nil, eris.Wrap(err, "upsert person")
	}
	return p, nil
}

// resolveEmail runs the waterfall and persists both the winner and any
// discovered addresses onto the person record. Returns "" when no address
// validated.
func (e *Enricher) resolveEmail(ctx context.Context, c *model.Candidate, person *model.Person, res *EnrichResult) string {
	resolution, err := e.waterfall.Run(ctx, c)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("waterfall %s: %v", c.FullName, err))
		return ""
	}

	var merge []string
	merge = append(merge, resolution.Discovered...)
	if resolution.Resolved {
		merge = append(merge, resolution.Email)
	}
	if len(merge) > 0 {
		if err := e.st.AddPersonEmails(ctx, person.ID, merge); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("merge emails %s: %v", person.ID, err))
		}
	}

	if !resolution.Resolved {
		return ""
	}
	return resolution.Email
}

// upsertCompany records organization metadata, best-effort. A nil return
// means the lead simply carries no company reference.
func (e *Enricher) upsertCompany(ctx context.Context, c *model.Candidate, siteID string) *string {
	if c.CompanyName == "" {
		return nil
	}
	company := &model.Company{
		SiteID:   siteID,
		Name:     c.CompanyName,
		Domain:   c.CompanyDomain,
		Website:  c.CompanyWebsite,
		Industry: c.CompanyIndustry,
	}
	if err := e.st.UpsertCompanyByName(ctx, company); err != nil {
		zap.L().Warn("company upsert failed",
			zap.String("company", c.CompanyName),
			zap.Error(err),
		)
		return nil
	}
	return &company.ID
}
