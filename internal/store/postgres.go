package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/db"
	"github.com/sells-group/icp-miner/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS icp_profiles (
	id             TEXT PRIMARY KEY,
	site_id        TEXT NOT NULL,
	name           TEXT NOT NULL,
	titles         JSONB NOT NULL DEFAULT '[]',
	seniorities    JSONB NOT NULL DEFAULT '[]',
	locations      JSONB NOT NULL DEFAULT '[]',
	industries     JSONB NOT NULL DEFAULT '[]',
	employee_range TEXT NOT NULL DEFAULT '',
	keywords       TEXT NOT NULL DEFAULT '',
	notion_page_id TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mining_jobs (
	id                TEXT PRIMARY KEY,
	site_id           TEXT NOT NULL,
	profile_id        TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	total_targets     INTEGER,
	processed_targets INTEGER NOT NULL DEFAULT 0,
	found_targets     INTEGER NOT NULL DEFAULT 0,
	current_page      INTEGER NOT NULL DEFAULT 0,
	last_error        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mining_jobs_site_status ON mining_jobs(site_id, status);

CREATE TABLE IF NOT EXISTS persons (
	id               TEXT PRIMARY KEY,
	external_id      TEXT NOT NULL DEFAULT '',
	external_role_id TEXT NOT NULL DEFAULT '',
	full_name        TEXT NOT NULL,
	normalized_key   TEXT NOT NULL DEFAULT '',
	company_name     TEXT NOT NULL DEFAULT '',
	role_title       TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	linkedin_url     TEXT NOT NULL DEFAULT '',
	emails           JSONB NOT NULL DEFAULT '[]',
	phones           JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_external_id ON persons(external_id) WHERE external_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_normalized_key ON persons(normalized_key) WHERE external_id = '' AND normalized_key <> '';
CREATE INDEX IF NOT EXISTS idx_persons_key_lookup ON persons(normalized_key);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	site_id      TEXT NOT NULL,
	person_id    TEXT NOT NULL REFERENCES persons(id),
	company_id   TEXT,
	segment_id   TEXT,
	full_name    TEXT NOT NULL,
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL DEFAULT '',
	role_title   TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	metadata     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_person_site ON leads(person_id, site_id);
CREATE INDEX IF NOT EXISTS idx_leads_site ON leads(site_id);

CREATE TABLE IF NOT EXISTS companies (
	id          TEXT PRIMARY KEY,
	site_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (site_id, name)
);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const jobColumns = `id, site_id, profile_id, status, total_targets, processed_targets, found_targets, current_page, last_error, created_at, updated_at`

func scanJob(row pgx.Row) (*model.MiningJob, error) {
	var j model.MiningJob
	err := row.Scan(&j.ID, &j.SiteID, &j.ProfileID, &j.Status, &j.TotalTargets,
		&j.ProcessedTargets, &j.FoundTargets, &j.CurrentPage, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob fetches a mining job by id. Returns (nil, nil) when absent.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.MiningJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM mining_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

// ListPendingJobs returns up to limit pending jobs for a site, oldest first.
func (s *PostgresStore) ListPendingJobs(ctx context.Context, siteID string, limit int) ([]model.MiningJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM mining_jobs WHERE site_id = $1 AND status IN ('pending', 'running') ORDER BY created_at LIMIT $2`,
		siteID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list pending jobs for site %s", siteID)
	}
	defer rows.Close()

	var jobs []model.MiningJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// CreateJob inserts a new pending mining job, assigning an id when empty.
func (s *PostgresStore) CreateJob(ctx context.Context, job *model.MiningJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mining_jobs (id, site_id, profile_id, status, total_targets, processed_targets, found_targets, current_page, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		job.ID, job.SiteID, job.ProfileID, job.Status, job.TotalTargets,
		job.ProcessedTargets, job.FoundTargets, job.CurrentPage, job.LastError,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "postgres: create job")
	}
	return nil
}

// SeedJobs bulk-inserts pre-seeded jobs, skipping ids that already exist.
// Used by the import command where a workbook may carry thousands of rows.
func (s *PostgresStore) SeedJobs(ctx context.Context, jobs []model.MiningJob) (int64, error) {
	rows := make([][]any, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		if j.Status == "" {
			j.Status = model.JobStatusPending
		}
		rows = append(rows, []any{j.ID, j.SiteID, j.ProfileID, string(j.Status)})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "mining_jobs",
		Columns:      []string{"id", "site_id", "profile_id", "status"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"site_id", "profile_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed jobs")
	}
	return n, nil
}

// MarkJobStarted transitions a job to running. A job already running is a
// no-op; a terminal or missing job is an error.
func (s *PostgresStore) MarkJobStarted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mining_jobs SET status = 'running', updated_at = now() WHERE id = $1 AND status = ANY($2)`,
		id, transitionGuard(model.JobStatusRunning))
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job %s started", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job %s not startable (missing or terminal)", id)
	}
	return nil
}

// UpdateJobProgress applies one atomic progress delta. Counters increment in
// SQL; optional fields only overwrite when set. processed_targets is clamped
// to the reported total: a page can carry more rows than the collaborator's
// announced total, and the stored counter must never exceed it.
func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id string, delta ProgressDelta) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mining_jobs SET
			processed_targets = LEAST(processed_targets + $2, COALESCE($4, total_targets, processed_targets + $2)),
			found_targets = found_targets + $3,
			total_targets = COALESCE($4, total_targets),
			current_page = COALESCE($5, current_page),
			last_error = COALESCE($6, last_error),
			updated_at = now()
		WHERE id = $1`,
		id, delta.Processed, delta.Found, delta.TotalTargets, delta.CurrentPage, delta.LastError)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s progress", id)
	}
	return nil
}

// MarkJobCompleted finalizes a job as completed or failed. Terminal rows the
// transition rules exclude are left untouched.
func (s *PostgresStore) MarkJobCompleted(ctx context.Context, id string, failed bool, lastError string) error {
	status := model.JobStatusCompleted
	if failed {
		status = model.JobStatusFailed
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE mining_jobs SET status = $2, last_error = $3, updated_at = now() WHERE id = $1 AND status = ANY($4)`,
		id, status, lastError, transitionGuard(status))
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job %s completed", id)
	}
	return nil
}

const profileColumns = `id, site_id, name, titles, seniorities, locations, industries, employee_range, keywords, notion_page_id, created_at, updated_at`

// GetProfile fetches an ICP profile by id. Returns (nil, nil) when absent.
func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.ICPProfile, error) {
	var p model.ICPProfile
	var titles, seniorities, locations, industries []byte
	err := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM icp_profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.SiteID, &p.Name, &titles, &seniorities, &locations, &industries,
			&p.EmployeeRange, &p.Keywords, &p.NotionPageID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", id)
	}
	for _, pair := range []struct {
		raw []byte
		out *[]string
	}{
		{titles, &p.Titles}, {seniorities, &p.Seniorities},
		{locations, &p.Locations}, {industries, &p.Industries},
	} {
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode profile %s lists", id)
		}
	}
	return &p, nil
}

// UpsertProfile inserts or updates an ICP profile by id.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.ICPProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	titles, _ := json.Marshal(emptyIfNil(p.Titles))
	seniorities, _ := json.Marshal(emptyIfNil(p.Seniorities))
	locations, _ := json.Marshal(emptyIfNil(p.Locations))
	industries, _ := json.Marshal(emptyIfNil(p.Industries))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO icp_profiles (id, site_id, name, titles, seniorities, locations, industries, employee_range, keywords, notion_page_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			titles = EXCLUDED.titles,
			seniorities = EXCLUDED.seniorities,
			locations = EXCLUDED.locations,
			industries = EXCLUDED.industries,
			employee_range = EXCLUDED.employee_range,
			keywords = EXCLUDED.keywords,
			notion_page_id = EXCLUDED.notion_page_id,
			updated_at = now()`,
		p.ID, p.SiteID, p.Name, titles, seniorities, locations, industries,
		p.EmployeeRange, p.Keywords, p.NotionPageID)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert profile %s", p.ID)
	}
	return nil
}

const personColumns = `id, external_id, external_role_id, full_name, normalized_key, company_name, role_title, location, linkedin_url, emails, phones, created_at, updated_at`

func scanPerson(row pgx.Row) (*model.Person, error) {
	var p model.Person
	var emails, phones []byte
	err := row.Scan(&p.ID, &p.ExternalID, &p.ExternalRoleID, &p.FullName, &p.NormalizedKey,
		&p.CompanyName, &p.RoleTitle, &p.Location, &p.LinkedInURL, &emails, &phones,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(emails, &p.Emails); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phones, &p.Phones); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPersonByExternalID looks up a person by the search source's person id,
// falling back to the role id. Returns (nil, nil) when absent.
func (s *PostgresStore) FindPersonByExternalID(ctx context.Context, externalID, externalRoleID string) (*model.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE (external_id = $1 AND external_id <> '') OR (external_role_id = $2 AND external_role_id <> '') LIMIT 1`,
		externalID, externalRoleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find person by external id %s", externalID)
	}
	return p, nil
}

// FindPersonByNameCompany looks up a person by the normalized name+company
// fallback key. Returns (nil, nil) when absent.
func (s *PostgresStore) FindPersonByNameCompany(ctx context.Context, normalizedKey string) (*model.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE normalized_key = $1 LIMIT 1`, normalizedKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find person by name+company")
	}
	return p, nil
}

// UpsertPerson inserts or updates a person. The conflict key is the external
// id when present, otherwise the normalized name+company key.
func (s *PostgresStore) UpsertPerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	emails, _ := json.Marshal(emptyIfNil(p.Emails))
	phones, _ := json.Marshal(emptyIfNil(p.Phones))

	conflict := `(normalized_key) WHERE external_id = '' AND normalized_key <> ''`
	if p.ExternalID != "" {
		conflict = `(external_id) WHERE external_id <> ''`
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO persons (id, external_id, external_role_id, full_name, normalized_key, company_name, role_title, location, linkedin_url, emails, phones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT `+conflict+` DO UPDATE SET
			external_role_id = EXCLUDED.external_role_id,
			full_name = EXCLUDED.full_name,
			company_name = EXCLUDED.company_name,
			role_title = EXCLUDED.role_title,
			location = EXCLUDED.location,
			linkedin_url = EXCLUDED.linkedin_url,
			emails = EXCLUDED.emails,
			phones = EXCLUDED.phones,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		p.ID, p.ExternalID, p.ExternalRoleID, p.FullName, p.NormalizedKey,
		p.CompanyName, p.RoleTitle, p.Location, p.LinkedInURL, emails, phones,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert person %s", p.FullName)
	}
	return nil
}

// AddPersonEmails merges addresses onto a person record, deduplicated in SQL.
func (s *PostgresStore) AddPersonEmails(ctx context.Context, personID string, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	buf, _ := json.Marshal(addrs)
	_, err := s.pool.Exec(ctx, `
		UPDATE persons SET
			emails = (SELECT COALESCE(jsonb_agg(DISTINCT e), '[]'::jsonb) FROM jsonb_array_elements_text(emails || $2::jsonb) AS e),
			updated_at = now()
		WHERE id = $1`,
		personID, buf)
	if err != nil {
		return eris.Wrapf(err, "postgres: add emails to person %s", personID)
	}
	return nil
}

const leadColumns = `id, site_id, person_id, company_id, segment_id, full_name, email, phone, company_name, role_title, location, linkedin_url, metadata, created_at`

// FindLead looks up a lead by (person, site). Returns (nil, nil) when absent.
func (s *PostgresStore) FindLead(ctx context.Context, personID, siteID string) (*model.Lead, error) {
	var l model.Lead
	var metadata []byte
	err := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE person_id = $1 AND site_id = $2`,
		personID, siteID).
		Scan(&l.ID, &l.SiteID, &l.PersonID, &l.CompanyID, &l.SegmentID, &l.FullName,
			&l.Email, &l.Phone, &l.CompanyName, &l.RoleTitle, &l.Location, &l.LinkedInURL,
			&metadata, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find lead person=%s site=%s", personID, siteID)
	}
	if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
		return nil, eris.Wrap(err, "postgres: decode lead metadata")
	}
	return &l, nil
}

// CreateLead inserts a lead. A unique index on (person_id, site_id) backs the
// at-most-one-lead invariant; violations map to ErrDuplicateLead.
func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	metadata, _ := json.Marshal(lead.Metadata)
	if lead.Metadata == nil {
		metadata = []byte(`{}`)
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO leads (id, site_id, person_id, company_id, segment_id, full_name, email, phone, company_name, role_title, location, linkedin_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		lead.ID, lead.SiteID, lead.PersonID, lead.CompanyID, lead.SegmentID,
		lead.FullName, lead.Email, lead.Phone, lead.CompanyName, lead.RoleTitle,
		lead.Location, lead.LinkedInURL, metadata,
	).Scan(&lead.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateLead
		}
		return eris.Wrapf(err, "postgres: create lead person=%s site=%s", lead.PersonID, lead.SiteID)
	}
	return nil
}

// UpsertCompanyByName inserts or refreshes a site-scoped company keyed by
// name. Blank incoming fields never clobber populated ones.
func (s *PostgresStore) UpsertCompanyByName(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, site_id, name, domain, website, industry, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (site_id, name) DO UPDATE SET
			domain = COALESCE(NULLIF(EXCLUDED.domain, ''), companies.domain),
			website = COALESCE(NULLIF(EXCLUDED.website, ''), companies.website),
			industry = COALESCE(NULLIF(EXCLUDED.industry, ''), companies.industry),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), companies.description),
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		c.ID, c.SiteID, c.Name, c.Domain, c.Website, c.Industry, c.Description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert company %s", c.Name)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
