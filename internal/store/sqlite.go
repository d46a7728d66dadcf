package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/icp-miner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-operator runs; the semantics match PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS icp_profiles (
	id             TEXT PRIMARY KEY,
	site_id        TEXT NOT NULL,
	name           TEXT NOT NULL,
	titles         TEXT NOT NULL DEFAULT '[]',
	seniorities    TEXT NOT NULL DEFAULT '[]',
	locations      TEXT NOT NULL DEFAULT '[]',
	industries     TEXT NOT NULL DEFAULT '[]',
	employee_range TEXT NOT NULL DEFAULT '',
	keywords       TEXT NOT NULL DEFAULT '',
	notion_page_id TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
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
	emails           TEXT NOT NULL DEFAULT '[]',
	phones           TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
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
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (site_id, name)
);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetJob fetches a mining job by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.MiningJob, error) {
	var j model.MiningJob
	err := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM mining_jobs WHERE id = ?`, id).
		Scan(&j.ID, &j.SiteID, &j.ProfileID, &j.Status, &j.TotalTargets,
			&j.ProcessedTargets, &j.FoundTargets, &j.CurrentPage, &j.LastError,
			&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return &j, nil
}

// ListPendingJobs returns up to limit pending jobs for a site, oldest first.
func (s *SQLiteStore) ListPendingJobs(ctx context.Context, siteID string, limit int) ([]model.MiningJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM mining_jobs WHERE site_id = ? AND status IN ('pending', 'running') ORDER BY created_at LIMIT ?`,
		siteID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list pending jobs for site %s", siteID)
	}
	defer rows.Close()

	var jobs []model.MiningJob
	for rows.Next() {
		var j model.MiningJob
		if err := rows.Scan(&j.ID, &j.SiteID, &j.ProfileID, &j.Status, &j.TotalTargets,
			&j.ProcessedTargets, &j.FoundTargets, &j.CurrentPage, &j.LastError,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CreateJob inserts a new pending mining job, assigning an id when empty.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.MiningJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mining_jobs (id, site_id, profile_id, status, total_targets, processed_targets, found_targets, current_page, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SiteID, job.ProfileID, job.Status, job.TotalTargets,
		job.ProcessedTargets, job.FoundTargets, job.CurrentPage, job.LastError, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: create job")
	}
	return nil
}

// SeedJobs inserts pre-seeded jobs one by one inside a transaction.
func (s *SQLiteStore) SeedJobs(ctx context.Context, jobs []model.MiningJob) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed jobs: begin")
	}
	defer tx.Rollback()

	var n int64
	for i := range jobs {
		j := &jobs[i]
		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		if j.Status == "" {
			j.Status = model.JobStatusPending
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO mining_jobs (id, site_id, profile_id, status)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET site_id = excluded.site_id, profile_id = excluded.profile_id`,
			j.ID, j.SiteID, j.ProfileID, j.Status)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed job %s", j.ID)
		}
		rows, _ := res.RowsAffected()
		n += rows
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed jobs: commit")
	}
	return n, nil
}

// MarkJobStarted transitions a job to running. A job already running is a
// no-op; a terminal or missing job is an error.
// statusInClause builds the placeholder list and argument slice for a status
// transition guard.
func statusInClause(id string, statuses []string) (string, []any) {
	args := make([]any, 0, len(statuses)+1)
	args = append(args, id)
	ph := make([]string, len(statuses))
	for i, s := range statuses {
		ph[i] = "?"
		args = append(args, s)
	}
	return strings.Join(ph, ", "), args
}

func (s *SQLiteStore) MarkJobStarted(ctx context.Context, id string) error {
	guard, args := statusInClause(id, transitionGuard(model.JobStatusRunning))
	res, err := s.db.ExecContext(ctx,
		`UPDATE mining_jobs SET status = 'running', updated_at = datetime('now') WHERE id = ? AND status IN (`+guard+`)`,
		args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job %s started", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: job %s not startable (missing or terminal)", id)
	}
	return nil
}

// UpdateJobProgress applies one atomic progress delta. processed_targets is
// clamped to the reported total: a page can carry more rows than the
// collaborator's announced total, and the stored counter must never exceed it.
func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id string, delta ProgressDelta) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mining_jobs SET
			processed_targets = MIN(processed_targets + ?, COALESCE(?, total_targets, processed_targets + ?)),
			found_targets = found_targets + ?,
			total_targets = COALESCE(?, total_targets),
			current_page = COALESCE(?, current_page),
			last_error = COALESCE(?, last_error),
			updated_at = datetime('now')
		WHERE id = ?`,
		delta.Processed, delta.TotalTargets, delta.Processed,
		delta.Found, delta.TotalTargets, delta.CurrentPage, delta.LastError, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s progress", id)
	}
	return nil
}

// MarkJobCompleted finalizes a job as completed or failed. Terminal rows the
// transition rules exclude are left untouched.
func (s *SQLiteStore) MarkJobCompleted(ctx context.Context, id string, failed bool, lastError string) error {
	status := model.JobStatusCompleted
	if failed {
		status = model.JobStatusFailed
	}
	guard, guardArgs := statusInClause(id, transitionGuard(status))
	args := append([]any{status, lastError}, guardArgs...)
	_, err := s.db.ExecContext(ctx,
		`UPDATE mining_jobs SET status = ?, last_error = ?, updated_at = datetime('now') WHERE id = ? AND status IN (`+guard+`)`,
		args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job %s completed", id)
	}
	return nil
}

// GetProfile fetches an ICP profile by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.ICPProfile, error) {
	var p model.ICPProfile
	var titles, seniorities, locations, industries string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM icp_profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.SiteID, &p.Name, &titles, &seniorities, &locations, &industries,
			&p.EmployeeRange, &p.Keywords, &p.NotionPageID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get profile %s", id)
	}
	for _, pair := range []struct {
		raw string
		out *[]string
	}{
		{titles, &p.Titles}, {seniorities, &p.Seniorities},
		{locations, &p.Locations}, {industries, &p.Industries},
	} {
		if err := json.Unmarshal([]byte(pair.raw), pair.out); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode profile %s lists", id)
		}
	}
	return &p, nil
}

// UpsertProfile inserts or updates an ICP profile by id.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.ICPProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	titles, _ := json.Marshal(emptyIfNil(p.Titles))
	seniorities, _ := json.Marshal(emptyIfNil(p.Seniorities))
	locations, _ := json.Marshal(emptyIfNil(p.Locations))
	industries, _ := json.Marshal(emptyIfNil(p.Industries))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO icp_profiles (id, site_id, name, titles, seniorities, locations, industries, employee_range, keywords, notion_page_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			titles = excluded.titles,
			seniorities = excluded.seniorities,
			locations = excluded.locations,
			industries = excluded.industries,
			employee_range = excluded.employee_range,
			keywords = excluded.keywords,
			notion_page_id = excluded.notion_page_id,
			updated_at = datetime('now')`,
		p.ID, p.SiteID, p.Name, string(titles), string(seniorities), string(locations),
		string(industries), p.EmployeeRange, p.Keywords, p.NotionPageID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert profile %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) scanPersonRow(row *sql.Row) (*model.Person, error) {
	var p model.Person
	var emails, phones string
	err := row.Scan(&p.ID, &p.ExternalID, &p.ExternalRoleID, &p.FullName, &p.NormalizedKey,
		&p.CompanyName, &p.RoleTitle, &p.Location, &p.LinkedInURL, &emails, &phones,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(emails), &p.Emails); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(phones), &p.Phones); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPersonByExternalID looks up a person by external id or role id.
func (s *SQLiteStore) FindPersonByExternalID(ctx context.Context, externalID, externalRoleID string) (*model.Person, error) {
	p, err := s.scanPersonRow(s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE (external_id = ? AND external_id <> '') OR (external_role_id = ? AND external_role_id <> '') LIMIT 1`,
		externalID, externalRoleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find person by external id %s", externalID)
	}
	return p, nil
}

// FindPersonByNameCompany looks up a person by the normalized fallback key.
func (s *SQLiteStore) FindPersonByNameCompany(ctx context.Context, normalizedKey string) (*model.Person, error) {
	p, err := s.scanPersonRow(s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE normalized_key = ? LIMIT 1`, normalizedKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find person by name+company")
	}
	return p, nil
}

// UpsertPerson inserts or updates a person, conflict-keyed like Postgres.
func (s *SQLiteStore) UpsertPerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	emails, _ := json.Marshal(emptyIfNil(p.Emails))
	phones, _ := json.Marshal(emptyIfNil(p.Phones))

	conflict := `(normalized_key) WHERE external_id = '' AND normalized_key <> ''`
	if p.ExternalID != "" {
		conflict = `(external_id) WHERE external_id <> ''`
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO persons (id, external_id, external_role_id, full_name, normalized_key, company_name, role_title, location, linkedin_url, emails, phones)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT `+conflict+` DO UPDATE SET
			external_role_id = excluded.external_role_id,
			full_name = excluded.full_name,
			company_name = excluded.company_name,
			role_title = excluded.role_title,
			location = excluded.location,
			linkedin_url = excluded.linkedin_url,
			emails = excluded.emails,
			phones = excluded.phones,
			updated_at = datetime('now')
		RETURNING id, created_at, updated_at`,
		p.ID, p.ExternalID, p.ExternalRoleID, p.FullName, p.NormalizedKey,
		p.CompanyName, p.RoleTitle, p.Location, p.LinkedInURL, string(emails), string(phones),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert person %s", p.FullName)
	}
	return nil
}

// AddPersonEmails merges addresses onto a person record. SQLite lacks the
// array aggregation used in Postgres, so the merge happens in Go inside a
// transaction.
func (s *SQLiteStore) AddPersonEmails(ctx context.Context, personID string, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: add emails: begin")
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT emails FROM persons WHERE id = ?`, personID).Scan(&raw); err != nil {
		return eris.Wrapf(err, "sqlite: add emails: load person %s", personID)
	}
	var existing []string
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return eris.Wrap(err, "sqlite: add emails: decode")
	}

	seen := make(map[string]bool, len(existing))
	merged := existing
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range addrs {
		if !seen[e] {
			seen[e] = true
			merged = append(merged, e)
		}
	}

	buf, _ := json.Marshal(merged)
	if _, err := tx.ExecContext(ctx,
		`UPDATE persons SET emails = ?, updated_at = datetime('now') WHERE id = ?`,
		string(buf), personID); err != nil {
		return eris.Wrapf(err, "sqlite: add emails: update person %s", personID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: add emails: commit")
}

// FindLead looks up a lead by (person, site). Returns (nil, nil) when absent.
func (s *SQLiteStore) FindLead(ctx context.Context, personID, siteID string) (*model.Lead, error) {
	var l model.Lead
	var metadata string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE person_id = ? AND site_id = ?`,
		personID, siteID).
		Scan(&l.ID, &l.SiteID, &l.PersonID, &l.CompanyID, &l.SegmentID, &l.FullName,
			&l.Email, &l.Phone, &l.CompanyName, &l.RoleTitle, &l.Location, &l.LinkedInURL,
			&metadata, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find lead person=%s site=%s", personID, siteID)
	}
	if err := json.Unmarshal([]byte(metadata), &l.Metadata); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode lead metadata")
	}
	return &l, nil
}

// CreateLead inserts a lead; unique-constraint violations map to
// ErrDuplicateLead.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	metadata, _ := json.Marshal(lead.Metadata)
	if lead.Metadata == nil {
		metadata = []byte(`{}`)
	}
	lead.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, site_id, person_id, company_id, segment_id, full_name, email, phone, company_name, role_title, location, linkedin_url, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SiteID, lead.PersonID, lead.CompanyID, lead.SegmentID,
		lead.FullName, lead.Email, lead.Phone, lead.CompanyName, lead.RoleTitle,
		lead.Location, lead.LinkedInURL, string(metadata), lead.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLead
		}
		return eris.Wrapf(err, "sqlite: create lead person=%s site=%s", lead.PersonID, lead.SiteID)
	}
	return nil
}

// UpsertCompanyByName inserts or refreshes a site-scoped company keyed by name.
func (s *SQLiteStore) UpsertCompanyByName(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO companies (id, site_id, name, domain, website, industry, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, name) DO UPDATE SET
			domain = CASE WHEN excluded.domain <> '' THEN excluded.domain ELSE companies.domain END,
			website = CASE WHEN excluded.website <> '' THEN excluded.website ELSE companies.website END,
			industry = CASE WHEN excluded.industry <> '' THEN excluded.industry ELSE companies.industry END,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE companies.description END,
			updated_at = datetime('now')
		RETURNING id, created_at, updated_at`,
		c.ID, c.SiteID, c.Name, c.Domain, c.Website, c.Industry, c.Description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert company %s", c.Name)
	}
	return nil
}
