package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/labor-atlas/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL,
	tier     TEXT NOT NULL,
	weight   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id    INTEGER NOT NULL REFERENCES sources(id),
	natural_key  TEXT NOT NULL,
	raw_company  TEXT NOT NULL,
	raw_location TEXT NOT NULL DEFAULT '',
	raw_title    TEXT NOT NULL DEFAULT '',
	raw_industry TEXT NOT NULL DEFAULT '',
	raw_salary   REAL,
	payload      BLOB,
	observed_at  DATETIME,
	ingested_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source_id, natural_key)
);

CREATE TABLE IF NOT EXISTS companies (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_aliases (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(id),
	alias      TEXT NOT NULL,
	normalized TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS metro_areas (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL UNIQUE,
	cbsa_code TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS locations (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	city     TEXT NOT NULL,
	state    TEXT NOT NULL,
	metro_id INTEGER REFERENCES metro_areas(id),
	UNIQUE (city, state)
);

CREATE TABLE IF NOT EXISTS canonical_roles (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL UNIQUE,
	occupation_code TEXT NOT NULL DEFAULT '',
	family          TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS title_rules (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern    TEXT NOT NULL UNIQUE,
	role_id    INTEGER NOT NULL REFERENCES canonical_roles(id),
	seniority  TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL,
	priority   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS observed_jobs (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_record_id       INTEGER NOT NULL UNIQUE REFERENCES raw_records(id),
	company_id          INTEGER NOT NULL REFERENCES companies(id),
	location_id         INTEGER REFERENCES locations(id),
	location_unresolved INTEGER NOT NULL DEFAULT 0,
	role_id             INTEGER NOT NULL REFERENCES canonical_roles(id),
	seniority           TEXT NOT NULL,
	salary              REAL,
	source_id           INTEGER NOT NULL REFERENCES sources(id),
	observed_at         DATETIME NOT NULL,
	stale               INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS archetypes (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id            INTEGER NOT NULL REFERENCES companies(id),
	metro_id              INTEGER REFERENCES metro_areas(id),
	role_id               INTEGER NOT NULL REFERENCES canonical_roles(id),
	seniority             TEXT NOT NULL,
	record_type           TEXT NOT NULL,
	salary_p25            REAL,
	salary_p50            REAL,
	salary_p75            REAL,
	salary_mean           REAL,
	salary_stddev         REAL,
	headcount_p10         REAL,
	headcount_p50         REAL,
	headcount_p90         REAL,
	confidence            REAL NOT NULL DEFAULT 0,
	existence_score       REAL NOT NULL DEFAULT 0,
	salary_score          REAL NOT NULL DEFAULT 0,
	headcount_score       REAL NOT NULL DEFAULT 0,
	existence_probability REAL,
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_archetypes_key
	ON archetypes(company_id, COALESCE(metro_id, 0), role_id, seniority);

CREATE TABLE IF NOT EXISTS archetype_evidence (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	archetype_id    INTEGER NOT NULL REFERENCES archetypes(id) ON DELETE CASCADE,
	observed_job_id INTEGER REFERENCES observed_jobs(id),
	model_run_id    TEXT,
	weight          REAL NOT NULL,
	CHECK ((observed_job_id IS NULL) != (model_run_id IS NULL))
);

CREATE TABLE IF NOT EXISTS model_runs (
	id          TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	snapshot_at DATETIME NOT NULL,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	metrics     TEXT
);

CREATE TABLE IF NOT EXISTS review_queue (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_record_id INTEGER NOT NULL UNIQUE REFERENCES raw_records(id),
	reason        TEXT NOT NULL,
	raw_title     TEXT NOT NULL DEFAULT '',
	resolved      INTEGER NOT NULL DEFAULT 0,
	resolution    TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	entity     TEXT NOT NULL,
	entity_id  INTEGER NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_raw_records_source ON raw_records(source_id);
CREATE INDEX IF NOT EXISTS idx_observed_jobs_company ON observed_jobs(company_id);
CREATE INDEX IF NOT EXISTS idx_observed_jobs_role ON observed_jobs(role_id);
CREATE INDEX IF NOT EXISTS idx_archetypes_company ON archetypes(company_id);
CREATE INDEX IF NOT EXISTS idx_evidence_archetype ON archetype_evidence(archetype_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_resolved ON review_queue(resolved);
CREATE INDEX IF NOT EXISTS idx_model_runs_model ON model_runs(model, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, src *model.Source) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (name, category, tier, weight) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET category = excluded.category, tier = excluded.tier, weight = excluded.weight`,
		src.Name, string(src.Category), string(src.Tier), src.Weight,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert source %s", src.Name)
	}
	return s.fillID(ctx, res, &src.ID, `SELECT id FROM sources WHERE name = ?`, src.Name)
}

func (s *SQLiteStore) GetSourceByName(ctx context.Context, name string) (*model.Source, error) {
	var src model.Source
	var category, tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, tier, weight FROM sources WHERE name = ?`, name,
	).Scan(&src.ID, &src.Name, &category, &tier, &src.Weight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source %s", name)
	}
	src.Category = model.SourceCategory(category)
	src.Tier = model.ReliabilityTier(tier)
	return &src, nil
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category, tier, weight FROM sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		var category, tier string
		if err := rows.Scan(&src.ID, &src.Name, &category, &tier, &src.Weight); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		src.Category = model.SourceCategory(category)
		src.Tier = model.ReliabilityTier(tier)
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertRole(ctx context.Context, r *model.CanonicalRole) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO canonical_roles (name, occupation_code, family, category) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET occupation_code = excluded.occupation_code, family = excluded.family, category = excluded.category`,
		r.Name, r.OccupationCode, r.Family, r.Category,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert role %s", r.Name)
	}
	return s.fillID(ctx, res, &r.ID, `SELECT id FROM canonical_roles WHERE name = ?`, r.Name)
}

func (s *SQLiteStore) ListRoles(ctx context.Context) ([]model.CanonicalRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, occupation_code, family, category FROM canonical_roles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list roles")
	}
	defer rows.Close()

	var out []model.CanonicalRole
	for rows.Next() {
		var r model.CanonicalRole
		if err := rows.Scan(&r.ID, &r.Name, &r.OccupationCode, &r.Family, &r.Category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan role")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertMetro(ctx context.Context, m *model.MetroArea) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO metro_areas (name, cbsa_code) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET cbsa_code = excluded.cbsa_code`,
		m.Name, m.CBSACode,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert metro %s", m.Name)
	}
	return s.fillID(ctx, res, &m.ID, `SELECT id FROM metro_areas WHERE name = ?`, m.Name)
}

func (s *SQLiteStore) GetMetro(ctx context.Context, id int64) (*model.MetroArea, error) {
	var m model.MetroArea
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, cbsa_code FROM metro_areas WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.CBSACode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get metro %d", id)
	}
	return &m, nil
}

func (s *SQLiteStore) ListMetros(ctx context.Context) ([]model.MetroArea, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, cbsa_code FROM metro_areas ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metros")
	}
	defer rows.Close()

	var out []model.MetroArea
	for rows.Next() {
		var m model.MetroArea
		if err := rows.Scan(&m.ID, &m.Name, &m.CBSACode); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metro")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertLocation(ctx context.Context, l *model.Location) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (city, state, metro_id) VALUES (?, ?, ?)
		 ON CONFLICT(city, state) DO UPDATE SET metro_id = excluded.metro_id`,
		l.City, l.State, nullInt(l.MetroID),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert location %s, %s", l.City, l.State)
	}
	return s.fillID(ctx, res, &l.ID, `SELECT id FROM locations WHERE city = ? AND state = ?`, l.City, l.State)
}

func (s *SQLiteStore) GetLocation(ctx context.Context, city, state string) (*model.Location, error) {
	var l model.Location
	var metroID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, city, state, metro_id FROM locations WHERE city = ? AND state = ?`, city, state,
	).Scan(&l.ID, &l.City, &l.State, &metroID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get location %s, %s", city, state)
	}
	if metroID.Valid {
		l.MetroID = &metroID.Int64
	}
	return &l, nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, city, state, metro_id FROM locations ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		var l model.Location
		var metroID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.City, &l.State, &metroID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		if metroID.Valid {
			l.MetroID = &metroID.Int64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertTitleRule(ctx context.Context, r *model.TitleRule) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO title_rules (pattern, role_id, seniority, confidence, priority) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(pattern) DO UPDATE SET role_id = excluded.role_id, seniority = excluded.seniority,
			confidence = excluded.confidence, priority = excluded.priority`,
		r.Pattern, r.RoleID, string(r.Seniority), r.Confidence, r.Priority,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert title rule %q", r.Pattern)
	}
	return s.fillID(ctx, res, &r.ID, `SELECT id FROM title_rules WHERE pattern = ?`, r.Pattern)
}

func (s *SQLiteStore) ListTitleRules(ctx context.Context) ([]model.TitleRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, role_id, seniority, confidence, priority FROM title_rules ORDER BY priority, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list title rules")
	}
	defer rows.Close()

	var out []model.TitleRule
	for rows.Next() {
		var r model.TitleRule
		var seniority string
		if err := rows.Scan(&r.ID, &r.Pattern, &r.RoleID, &seniority, &r.Confidence, &r.Priority); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan title rule")
		}
		r.Seniority = model.Seniority(seniority)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertRawRecord(ctx context.Context, r *model.RawRecord) (bool, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM raw_records WHERE source_id = ? AND natural_key = ?`,
		r.SourceID, r.NaturalKey,
	).Scan(&existingID)
	if err == nil {
		// Raw records are append-only; a duplicate natural key is a no-op.
		r.ID = existingID
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, eris.Wrap(err, "sqlite: raw record lookup")
	}

	if r.IngestedAt.IsZero() {
		r.IngestedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_records (source_id, natural_key, raw_company, raw_location, raw_title, raw_industry, raw_salary, payload, observed_at, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SourceID, r.NaturalKey, r.RawCompany, r.RawLocation, r.RawTitle, r.RawIndustry,
		nullFloat(r.RawSalary), r.Payload, nullTime(r.ObservedAt), r.IngestedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert raw record %s", r.NaturalKey)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: raw record id")
	}
	return true, nil
}

func (s *SQLiteStore) GetRawRecord(ctx context.Context, id int64) (*model.RawRecord, error) {
	var r model.RawRecord
	var rawSalary sql.NullFloat64
	var observedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, natural_key, raw_company, raw_location, raw_title, raw_industry, raw_salary, payload, observed_at, ingested_at
		 FROM raw_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.SourceID, &r.NaturalKey, &r.RawCompany, &r.RawLocation, &r.RawTitle,
		&r.RawIndustry, &rawSalary, &r.Payload, &observedAt, &r.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get raw record %d", id)
	}
	if rawSalary.Valid {
		r.RawSalary = &rawSalary.Float64
	}
	if observedAt.Valid {
		t := observedAt.Time
		r.ObservedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, normalized_name, industry, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.NormalizedName, c.Industry, c.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %s", c.NormalizedName)
	}
	c.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: company id")
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	return s.scanCompany(s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies WHERE id = ?`, id))
}

func (s *SQLiteStore) GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error) {
	return s.scanCompany(s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies WHERE normalized_name = ?`, normalized))
}

func (s *SQLiteStore) scanCompany(row *sql.Row) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateCompanyAlias(ctx context.Context, a *model.CompanyAlias) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO company_aliases (company_id, alias, normalized) VALUES (?, ?, ?)
		 ON CONFLICT(normalized) DO NOTHING`,
		a.CompanyID, a.Alias, a.Normalized,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert alias %s", a.Normalized)
	}
	return s.fillID(ctx, res, &a.ID, `SELECT id FROM company_aliases WHERE normalized = ?`, a.Normalized)
}

func (s *SQLiteStore) GetCompanyAlias(ctx context.Context, normalized string) (*model.CompanyAlias, error) {
	var a model.CompanyAlias
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, alias, normalized FROM company_aliases WHERE normalized = ?`, normalized,
	).Scan(&a.ID, &a.CompanyID, &a.Alias, &a.Normalized)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get alias %s", normalized)
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateCompanyIndustry(ctx context.Context, id int64, industry string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET industry = ? WHERE id = ?`, industry, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company industry %d", id)
	}
	return checkRowsAffected(res, "company", id)
}

func (s *SQLiteStore) RepointCompanyRefs(ctx context.Context, fromID, toID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin repoint")
	}
	defer tx.Rollback()

	for _, q := range []string{
		`UPDATE company_aliases SET company_id = ? WHERE company_id = ?`,
		`UPDATE observed_jobs SET company_id = ? WHERE company_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, toID, fromID); err != nil {
			return eris.Wrapf(err, "sqlite: repoint company %d -> %d", fromID, toID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit repoint")
}

func (s *SQLiteStore) DeleteArchetypesForCompany(ctx context.Context, companyID int64) ([]model.ArchetypeKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metro_id, role_id, seniority FROM archetypes WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list archetypes for company %d", companyID)
	}
	defer rows.Close()

	var keys []model.ArchetypeKey
	for rows.Next() {
		var metroID sql.NullInt64
		var roleID int64
		var seniority string
		if err := rows.Scan(&metroID, &roleID, &seniority); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan archetype key")
		}
		k := model.ArchetypeKey{CompanyID: companyID, RoleID: roleID, Seniority: model.Seniority(seniority)}
		if metroID.Valid {
			k.MetroID = &metroID.Int64
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate archetype keys")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM archetypes WHERE company_id = ?`, companyID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: delete archetypes for company %d", companyID)
	}
	return keys, nil
}

func (s *SQLiteStore) DeleteCompany(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete company %d", id)
	}
	return checkRowsAffected(res, "company", id)
}

func (s *SQLiteStore) UpsertObservedJob(ctx context.Context, j *model.ObservedJob) (bool, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM observed_jobs WHERE raw_record_id = ?`, j.RawRecordID,
	).Scan(&existingID)
	switch {
	case err == nil:
		j.ID = existingID
		_, err = s.db.ExecContext(ctx,
			`UPDATE observed_jobs SET company_id = ?, location_id = ?, location_unresolved = ?, role_id = ?,
				seniority = ?, salary = ?, source_id = ?, observed_at = ?, stale = ? WHERE id = ?`,
			j.CompanyID, nullInt(j.LocationID), j.LocationUnresolved, j.RoleID,
			string(j.Seniority), nullFloat(j.Salary), j.SourceID, j.ObservedAt.UTC(), j.Stale, existingID,
		)
		return false, eris.Wrapf(err, "sqlite: update observed job %d", existingID)
	case err != sql.ErrNoRows:
		return false, eris.Wrap(err, "sqlite: observed job lookup")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO observed_jobs (raw_record_id, company_id, location_id, location_unresolved, role_id, seniority, salary, source_id, observed_at, stale)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.RawRecordID, j.CompanyID, nullInt(j.LocationID), j.LocationUnresolved,
		j.RoleID, string(j.Seniority), nullFloat(j.Salary), j.SourceID, j.ObservedAt.UTC(), j.Stale,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert observed job for raw record %d", j.RawRecordID)
	}
	j.ID, err = res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: observed job id")
	}
	return true, nil
}

func (s *SQLiteStore) MarkStaleObservedJobs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE observed_jobs SET stale = 1 WHERE observed_at < ? AND stale = 0`, before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark stale observed jobs")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: stale rows affected")
}

const observedJobCols = `id, raw_record_id, company_id, location_id, location_unresolved, role_id, seniority, salary, source_id, observed_at, stale`

func (s *SQLiteStore) ListObservedJobs(ctx context.Context, filter ObservedJobFilter) ([]model.ObservedJob, error) {
	q := `SELECT ` + observedJobCols + ` FROM observed_jobs WHERE 1=1`
	var args []any
	if filter.CompanyID != 0 {
		q += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.RoleID != 0 {
		q += ` AND role_id = ?`
		args = append(args, filter.RoleID)
	}
	if filter.WithSalary {
		q += ` AND salary IS NOT NULL`
	}
	if !filter.IncludeStale {
		q += ` AND stale = 0`
	}
	q += ` ORDER BY id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			q += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observed jobs")
	}
	defer rows.Close()
	return scanObservedJobs(rows)
}

func (s *SQLiteStore) ListObservedJobsForKey(ctx context.Context, key model.ArchetypeKey) ([]model.ObservedJob, error) {
	q := `SELECT ` + observedJobCols + ` FROM observed_jobs o
		WHERE o.company_id = ? AND o.role_id = ? AND o.seniority = ? AND o.stale = 0
		AND COALESCE((SELECT metro_id FROM locations l WHERE l.id = o.location_id), 0) = ?
		ORDER BY o.id`
	var metro int64
	if key.MetroID != nil {
		metro = *key.MetroID
	}
	rows, err := s.db.QueryContext(ctx, q, key.CompanyID, key.RoleID, string(key.Seniority), metro)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observed jobs for key")
	}
	defer rows.Close()
	return scanObservedJobs(rows)
}

func (s *SQLiteStore) DistinctArchetypeKeys(ctx context.Context) ([]model.ArchetypeKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT o.company_id, l.metro_id, o.role_id, o.seniority
		 FROM observed_jobs o LEFT JOIN locations l ON l.id = o.location_id
		 WHERE o.stale = 0
		 ORDER BY o.company_id, o.role_id, o.seniority`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: distinct archetype keys")
	}
	defer rows.Close()

	var keys []model.ArchetypeKey
	for rows.Next() {
		var k model.ArchetypeKey
		var metroID sql.NullInt64
		var seniority string
		if err := rows.Scan(&k.CompanyID, &metroID, &k.RoleID, &seniority); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan archetype key")
		}
		if metroID.Valid {
			k.MetroID = &metroID.Int64
		}
		k.Seniority = model.Seniority(seniority)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanObservedJobs(rows *sql.Rows) ([]model.ObservedJob, error) {
	var out []model.ObservedJob
	for rows.Next() {
		var j model.ObservedJob
		var locationID sql.NullInt64
		var salary sql.NullFloat64
		var seniority string
		if err := rows.Scan(&j.ID, &j.RawRecordID, &j.CompanyID, &locationID, &j.LocationUnresolved,
			&j.RoleID, &seniority, &salary, &j.SourceID, &j.ObservedAt, &j.Stale); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observed job")
		}
		if locationID.Valid {
			j.LocationID = &locationID.Int64
		}
		if salary.Valid {
			j.Salary = &salary.Float64
		}
		j.Seniority = model.Seniority(seniority)
		out = append(out, j)
	}
	return out, rows.Err()
}

const archetypeCols = `id, company_id, metro_id, role_id, seniority, record_type,
	salary_p25, salary_p50, salary_p75, salary_mean, salary_stddev,
	headcount_p10, headcount_p50, headcount_p90,
	confidence, existence_score, salary_score, headcount_score, existence_probability, updated_at`

func (s *SQLiteStore) UpsertArchetype(ctx context.Context, a *model.Archetype) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO archetypes (company_id, metro_id, role_id, seniority, record_type,
			salary_p25, salary_p50, salary_p75, salary_mean, salary_stddev,
			headcount_p10, headcount_p50, headcount_p90,
			confidence, existence_score, salary_score, headcount_score, existence_probability, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(company_id, COALESCE(metro_id, 0), role_id, seniority) DO UPDATE SET
			record_type = excluded.record_type,
			salary_p25 = excluded.salary_p25, salary_p50 = excluded.salary_p50, salary_p75 = excluded.salary_p75,
			salary_mean = excluded.salary_mean, salary_stddev = excluded.salary_stddev,
			headcount_p10 = excluded.headcount_p10, headcount_p50 = excluded.headcount_p50, headcount_p90 = excluded.headcount_p90,
			confidence = excluded.confidence, existence_score = excluded.existence_score,
			salary_score = excluded.salary_score, headcount_score = excluded.headcount_score,
			existence_probability = excluded.existence_probability, updated_at = excluded.updated_at`,
		a.CompanyID, nullInt(a.MetroID), a.RoleID, string(a.Seniority), string(a.Type),
		nullFloat(a.SalaryP25), nullFloat(a.SalaryP50), nullFloat(a.SalaryP75),
		nullFloat(a.SalaryMean), nullFloat(a.SalaryStddev),
		nullFloat(a.HeadcountP10), nullFloat(a.HeadcountP50), nullFloat(a.HeadcountP90),
		a.Confidence, a.ExistenceScore, a.SalaryScore, a.HeadcountScore,
		nullFloat(a.ExistenceProbability), a.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert archetype")
	}
	var metro int64
	if a.MetroID != nil {
		metro = *a.MetroID
	}
	return s.fillID(ctx, res, &a.ID,
		`SELECT id FROM archetypes WHERE company_id = ? AND COALESCE(metro_id, 0) = ? AND role_id = ? AND seniority = ?`,
		a.CompanyID, metro, a.RoleID, string(a.Seniority))
}

func (s *SQLiteStore) GetArchetypeByKey(ctx context.Context, key model.ArchetypeKey) (*model.Archetype, error) {
	var metro int64
	if key.MetroID != nil {
		metro = *key.MetroID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+archetypeCols+` FROM archetypes
		 WHERE company_id = ? AND COALESCE(metro_id, 0) = ? AND role_id = ? AND seniority = ?`,
		key.CompanyID, metro, key.RoleID, string(key.Seniority))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get archetype by key")
	}
	defer rows.Close()

	out, err := scanArchetypes(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (s *SQLiteStore) QueryArchetypes(ctx context.Context, filter ArchetypeFilter) ([]model.Archetype, error) {
	q := `SELECT ` + archetypeCols + ` FROM archetypes WHERE 1=1`
	var args []any
	if filter.CompanyID != 0 {
		q += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.MetroID != nil {
		q += ` AND COALESCE(metro_id, 0) = ?`
		args = append(args, *filter.MetroID)
	}
	if filter.RoleID != 0 {
		q += ` AND role_id = ?`
		args = append(args, filter.RoleID)
	}
	if filter.Seniority != "" {
		q += ` AND seniority = ?`
		args = append(args, string(filter.Seniority))
	}
	if filter.Type != "" {
		q += ` AND record_type = ?`
		args = append(args, string(filter.Type))
	}
	q += ` ORDER BY company_id, role_id, seniority`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			q += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query archetypes")
	}
	defer rows.Close()
	return scanArchetypes(rows)
}

func scanArchetypes(rows *sql.Rows) ([]model.Archetype, error) {
	var out []model.Archetype
	for rows.Next() {
		var a model.Archetype
		var metroID sql.NullInt64
		var seniority, recordType string
		var p25, p50, p75, mean, stddev, h10, h50, h90, existProb sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.CompanyID, &metroID, &a.RoleID, &seniority, &recordType,
			&p25, &p50, &p75, &mean, &stddev, &h10, &h50, &h90,
			&a.Confidence, &a.ExistenceScore, &a.SalaryScore, &a.HeadcountScore, &existProb, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan archetype")
		}
		if metroID.Valid {
			a.MetroID = &metroID.Int64
		}
		a.Seniority = model.Seniority(seniority)
		a.Type = model.RecordType(recordType)
		a.SalaryP25 = floatPtr(p25)
		a.SalaryP50 = floatPtr(p50)
		a.SalaryP75 = floatPtr(p75)
		a.SalaryMean = floatPtr(mean)
		a.SalaryStddev = floatPtr(stddev)
		a.HeadcountP10 = floatPtr(h10)
		a.HeadcountP50 = floatPtr(h50)
		a.HeadcountP90 = floatPtr(h90)
		a.ExistenceProbability = floatPtr(existProb)
		out = append(out, a)
	}
	return out, rows.Err()
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func (s *SQLiteStore) ReplaceEvidence(ctx context.Context, archetypeID int64, evidence []model.ArchetypeEvidence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin evidence replace")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM archetype_evidence WHERE archetype_id = ?`, archetypeID); err != nil {
		return eris.Wrapf(err, "sqlite: clear evidence for archetype %d", archetypeID)
	}
	for i := range evidence {
		e := &evidence[i]
		var modelRunID any
		if e.ModelRunID != nil {
			modelRunID = *e.ModelRunID
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO archetype_evidence (archetype_id, observed_job_id, model_run_id, weight) VALUES (?, ?, ?, ?)`,
			archetypeID, nullInt(e.ObservedJobID), modelRunID, e.Weight,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert evidence for archetype %d", archetypeID)
		}
		e.ArchetypeID = archetypeID
		if e.ID, err = res.LastInsertId(); err != nil {
			return eris.Wrap(err, "sqlite: evidence id")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit evidence replace")
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, archetypeID int64) ([]model.ArchetypeEvidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, archetype_id, observed_job_id, model_run_id, weight
		 FROM archetype_evidence WHERE archetype_id = ? ORDER BY id`, archetypeID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list evidence for archetype %d", archetypeID)
	}
	defer rows.Close()

	var out []model.ArchetypeEvidence
	for rows.Next() {
		var e model.ArchetypeEvidence
		var jobID sql.NullInt64
		var runID sql.NullString
		if err := rows.Scan(&e.ID, &e.ArchetypeID, &jobID, &runID, &e.Weight); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		if jobID.Valid {
			e.ObservedJobID = &jobID.Int64
		}
		if runID.Valid {
			e.ModelRunID = &runID.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateModelRun(ctx context.Context, run *model.ModelRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_runs (id, model, status, snapshot_at, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Model, string(run.Status), run.SnapshotAt.UTC(), run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert model run %s", run.ID)
}

func (s *SQLiteStore) CompleteModelRun(ctx context.Context, id string, status model.ModelRunStatus, metrics map[string]float64) error {
	var metricsJSON any
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal metrics")
		}
		metricsJSON = string(b)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_runs SET status = ?, finished_at = ?, metrics = ? WHERE id = ?`,
		string(status), time.Now().UTC(), metricsJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete model run %s", id)
	}
	return checkRowsAffected(res, "model run", id)
}

func (s *SQLiteStore) GetModelRun(ctx context.Context, id string) (*model.ModelRun, error) {
	var run model.ModelRun
	var status string
	var finishedAt sql.NullTime
	var metricsJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model, status, snapshot_at, started_at, finished_at, metrics FROM model_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Model, &status, &run.SnapshotAt, &run.StartedAt, &finishedAt, &metricsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get model run %s", id)
	}
	run.Status = model.ModelRunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &run.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run metrics")
		}
	}
	return &run, nil
}

func (s *SQLiteStore) HasActiveModelRun(ctx context.Context, modelName string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM model_runs WHERE model = ? AND status = ?`,
		modelName, string(model.RunRunning),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: active run check for %s", modelName)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreateReviewItem(ctx context.Context, item *model.ReviewQueueItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (raw_record_id, reason, raw_title, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(raw_record_id) DO NOTHING`,
		item.RawRecordID, item.Reason, item.RawTitle, item.CreatedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert review item for raw record %d", item.RawRecordID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: review rows affected")
	}
	if err := s.fillID(ctx, res, &item.ID,
		`SELECT id FROM review_queue WHERE raw_record_id = ?`, item.RawRecordID); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetReviewItem(ctx context.Context, id int64) (*model.ReviewQueueItem, error) {
	var item model.ReviewQueueItem
	var resolutionJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, raw_record_id, reason, raw_title, resolved, resolution, created_at
		 FROM review_queue WHERE id = ?`, id,
	).Scan(&item.ID, &item.RawRecordID, &item.Reason, &item.RawTitle, &item.Resolved, &resolutionJSON, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get review item %d", id)
	}
	if resolutionJSON.Valid && resolutionJSON.String != "" {
		var res model.ReviewResolution
		if err := json.Unmarshal([]byte(resolutionJSON.String), &res); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal review resolution")
		}
		item.Resolution = &res
	}
	return &item, nil
}

func (s *SQLiteStore) ListPendingReviews(ctx context.Context, limit int) ([]model.ReviewQueueItem, error) {
	q := `SELECT id, raw_record_id, reason, raw_title, resolved, resolution, created_at
		FROM review_queue WHERE resolved = 0 ORDER BY id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending reviews")
	}
	defer rows.Close()

	var out []model.ReviewQueueItem
	for rows.Next() {
		var item model.ReviewQueueItem
		var resolutionJSON sql.NullString
		if err := rows.Scan(&item.ID, &item.RawRecordID, &item.Reason, &item.RawTitle,
			&item.Resolved, &resolutionJSON, &item.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review item")
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, id int64, resolution model.ReviewResolution) error {
	b, err := json.Marshal(resolution)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review resolution")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET resolved = 1, resolution = ? WHERE id = ? AND resolved = 0`,
		string(b), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve review %d", id)
	}
	return checkRowsAffected(res, "pending review", id)
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (entity, entity_id, action, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Entity, e.EntityID, e.Action, e.Detail, e.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: append audit")
	}
	e.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: audit id")
}

func (s *SQLiteStore) Counts(ctx context.Context) (*QualityCounts, error) {
	var c QualityCounts
	queries := []struct {
		dst *int64
		q   string
	}{
		{&c.RawRecords, `SELECT COUNT(*) FROM raw_records`},
		{&c.ObservedJobs, `SELECT COUNT(*) FROM observed_jobs WHERE stale = 0`},
		{&c.Companies, `SELECT COUNT(*) FROM companies`},
		{&c.Archetypes, `SELECT COUNT(*) FROM archetypes`},
		{&c.ObservedArchetypes, `SELECT COUNT(*) FROM archetypes WHERE record_type = 'observed'`},
		{&c.InferredArchetypes, `SELECT COUNT(*) FROM archetypes WHERE record_type = 'inferred'`},
		{&c.UnresolvedLocation, `SELECT COUNT(*) FROM observed_jobs WHERE location_unresolved = 1 AND stale = 0`},
		{&c.PendingReviews, `SELECT COUNT(*) FROM review_queue WHERE resolved = 0`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.q).Scan(q.dst); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %q", strings.TrimPrefix(q.q, "SELECT COUNT(*) FROM "))
		}
	}
	return &c, nil
}

// fillID resolves *id by natural key after an upsert. LastInsertId is
// unreliable when the statement hit its conflict clause, so the lookup
// always runs.
func (s *SQLiteStore) fillID(ctx context.Context, _ sql.Result, id *int64, lookup string, args ...any) error {
	err := s.db.QueryRowContext(ctx, lookup, args...).Scan(id)
	return eris.Wrap(err, "sqlite: lookup id after upsert")
}
