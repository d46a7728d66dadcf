// Package store defines the persistence interface for the mining pipeline
// and its Postgres and SQLite implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/model"
)

// ErrDuplicateLead is returned by CreateLead when a lead already exists for
// the (person, site) pair. The uniqueness constraint lives in storage so the
// at-most-one-lead invariant holds even under concurrent job execution.
var ErrDuplicateLead = eris.New("store: duplicate lead for (person, site)")

// ProgressDelta is one atomic progress update for a mining job. Counters are
// applied as SQL increments, never absolute writes, so a mid-run crash loses
// no completed work.
type ProgressDelta struct {
	Processed    int
	Found        int
	TotalTargets *int    // set once, discovered on page 0
	CurrentPage  *int    // next unfetched page
	LastError    *string // recorded page/candidate failure
}

// transitionGuard lists the statuses a job may hold for a transition to the
// given status to apply, derived from model.CanTransition. The target status
// itself is included so repeating a transition stays an idempotent no-op.
func transitionGuard(to model.JobStatus) []string {
	out := []string{string(to)}
	for _, from := range []model.JobStatus{
		model.JobStatusPending, model.JobStatusRunning,
		model.JobStatusCompleted, model.JobStatusFailed,
	} {
		if model.CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// Store is the persistence interface for jobs, ICP profiles, persons, leads
// and companies. Lookups return (nil, nil) when no row exists; absence is a
// normal outcome for this pipeline, not an error.
type Store interface {
	// Jobs
	GetJob(ctx context.Context, id string) (*model.MiningJob, error)
	ListPendingJobs(ctx context.Context, siteID string, limit int) ([]model.MiningJob, error)
	CreateJob(ctx context.Context, job *model.MiningJob) error
	SeedJobs(ctx context.Context, jobs []model.MiningJob) (int64, error)
	MarkJobStarted(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, delta ProgressDelta) error
	MarkJobCompleted(ctx context.Context, id string, failed bool, lastError string) error

	// ICP profiles
	GetProfile(ctx context.Context, id string) (*model.ICPProfile, error)
	UpsertProfile(ctx context.Context, p *model.ICPProfile) error

	// Persons
	FindPersonByExternalID(ctx context.Context, externalID, externalRoleID string) (*model.Person, error)
	FindPersonByNameCompany(ctx context.Context, normalizedKey string) (*model.Person, error)
	UpsertPerson(ctx context.Context, p *model.Person) error
	AddPersonEmails(ctx context.Context, personID string, emails []string) error

	// Leads
	FindLead(ctx context.Context, personID, siteID string) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error

	// Companies
	UpsertCompanyByName(ctx context.Context, c *model.Company) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
