package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/labor-atlas/internal/db"
	"github.com/sells-group/labor-atlas/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
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

// NewPostgresFromPool wraps an existing pool. Used by tests and by
// subsystems that share a pool with bulk ingestion.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for bulk ingestion paths
// that bypass row-at-a-time upserts.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL,
	tier     TEXT NOT NULL,
	weight   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_records (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	source_id    BIGINT NOT NULL REFERENCES sources(id),
	natural_key  TEXT NOT NULL,
	raw_company  TEXT NOT NULL,
	raw_location TEXT NOT NULL DEFAULT '',
	raw_title    TEXT NOT NULL DEFAULT '',
	raw_industry TEXT NOT NULL DEFAULT '',
	raw_salary   DOUBLE PRECISION,
	payload      BYTEA,
	observed_at  TIMESTAMPTZ,
	ingested_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_id, natural_key)
);

CREATE TABLE IF NOT EXISTS companies (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_aliases (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	company_id BIGINT NOT NULL REFERENCES companies(id),
	alias      TEXT NOT NULL,
	normalized TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS metro_areas (
	id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	cbsa_code TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS locations (
	id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	city     TEXT NOT NULL,
	state    TEXT NOT NULL,
	metro_id BIGINT REFERENCES metro_areas(id),
	UNIQUE (city, state)
);

CREATE TABLE IF NOT EXISTS canonical_roles (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	occupation_code TEXT NOT NULL DEFAULT '',
	family          TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS title_rules (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	pattern    TEXT NOT NULL UNIQUE,
	role_id    BIGINT NOT NULL REFERENCES canonical_roles(id),
	seniority  TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL,
	priority   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS observed_jobs (
	id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	raw_record_id       BIGINT NOT NULL UNIQUE REFERENCES raw_records(id),
	company_id          BIGINT NOT NULL REFERENCES companies(id),
	location_id         BIGINT REFERENCES locations(id),
	location_unresolved BOOLEAN NOT NULL DEFAULT false,
	role_id             BIGINT NOT NULL REFERENCES canonical_roles(id),
	seniority           TEXT NOT NULL,
	salary              DOUBLE PRECISION,
	source_id           BIGINT NOT NULL REFERENCES sources(id),
	observed_at         TIMESTAMPTZ NOT NULL,
	stale               BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS archetypes (
	id                    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	company_id            BIGINT NOT NULL REFERENCES companies(id),
	metro_id              BIGINT REFERENCES metro_areas(id),
	role_id               BIGINT NOT NULL REFERENCES canonical_roles(id),
	seniority             TEXT NOT NULL,
	record_type           TEXT NOT NULL,
	salary_p25            DOUBLE PRECISION,
	salary_p50            DOUBLE PRECISION,
	salary_p75            DOUBLE PRECISION,
	salary_mean           DOUBLE PRECISION,
	salary_stddev         DOUBLE PRECISION,
	headcount_p10         DOUBLE PRECISION,
	headcount_p50         DOUBLE PRECISION,
	headcount_p90         DOUBLE PRECISION,
	confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
	existence_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	salary_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	headcount_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	existence_probability DOUBLE PRECISION,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_archetypes_key
	ON archetypes (company_id, COALESCE(metro_id, 0), role_id, seniority);

CREATE TABLE IF NOT EXISTS archetype_evidence (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	archetype_id    BIGINT NOT NULL REFERENCES archetypes(id) ON DELETE CASCADE,
	observed_job_id BIGINT REFERENCES observed_jobs(id),
	model_run_id    TEXT,
	weight          DOUBLE PRECISION NOT NULL,
	CHECK ((observed_job_id IS NULL) != (model_run_id IS NULL))
);

CREATE TABLE IF NOT EXISTS model_runs (
	id          TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	snapshot_at TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	metrics     JSONB
);

CREATE TABLE IF NOT EXISTS review_queue (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	raw_record_id BIGINT NOT NULL UNIQUE REFERENCES raw_records(id),
	reason        TEXT NOT NULL,
	raw_title     TEXT NOT NULL DEFAULT '',
	resolved      BOOLEAN NOT NULL DEFAULT false,
	resolution    JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	entity     TEXT NOT NULL,
	entity_id  BIGINT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_raw_records_source ON raw_records(source_id);
CREATE INDEX IF NOT EXISTS idx_observed_jobs_company ON observed_jobs(company_id);
CREATE INDEX IF NOT EXISTS idx_observed_jobs_role ON observed_jobs(role_id);
CREATE INDEX IF NOT EXISTS idx_archetypes_company ON archetypes(company_id);
CREATE INDEX IF NOT EXISTS idx_evidence_archetype ON archetype_evidence(archetype_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_resolved ON review_queue(resolved) WHERE NOT resolved;
CREATE INDEX IF NOT EXISTS idx_model_runs_model ON model_runs(model, status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertSource(ctx context.Context, src *model.Source) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (name, category, tier, weight) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET category = EXCLUDED.category, tier = EXCLUDED.tier, weight = EXCLUDED.weight
		 RETURNING id`,
		src.Name, string(src.Category), string(src.Tier), src.Weight,
	).Scan(&src.ID)
	return eris.Wrapf(err, "postgres: upsert source %s", src.Name)
}

func (s *PostgresStore) GetSourceByName(ctx context.Context, name string) (*model.Source, error) {
	var src model.Source
	var category, tier string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, tier, weight FROM sources WHERE name = $1`, name,
	).Scan(&src.ID, &src.Name, &category, &tier, &src.Weight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source %s", name)
	}
	src.Category = model.SourceCategory(category)
	src.Tier = model.ReliabilityTier(tier)
	return &src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, category, tier, weight FROM sources ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		var category, tier string
		if err := rows.Scan(&src.ID, &src.Name, &category, &tier, &src.Weight); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		src.Category = model.SourceCategory(category)
		src.Tier = model.ReliabilityTier(tier)
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertRole(ctx context.Context, r *model.CanonicalRole) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO canonical_roles (name, occupation_code, family, category) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET occupation_code = EXCLUDED.occupation_code,
			family = EXCLUDED.family, category = EXCLUDED.category
		 RETURNING id`,
		r.Name, r.OccupationCode, r.Family, r.Category,
	).Scan(&r.ID)
	return eris.Wrapf(err, "postgres: upsert role %s", r.Name)
}

func (s *PostgresStore) ListRoles(ctx context.Context) ([]model.CanonicalRole, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, occupation_code, family, category FROM canonical_roles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list roles")
	}
	defer rows.Close()

	var out []model.CanonicalRole
	for rows.Next() {
		var r model.CanonicalRole
		if err := rows.Scan(&r.ID, &r.Name, &r.OccupationCode, &r.Family, &r.Category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan role")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertMetro(ctx context.Context, m *model.MetroArea) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO metro_areas (name, cbsa_code) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET cbsa_code = EXCLUDED.cbsa_code
		 RETURNING id`,
		m.Name, m.CBSACode,
	).Scan(&m.ID)
	return eris.Wrapf(err, "postgres: upsert metro %s", m.Name)
}

func (s *PostgresStore) GetMetro(ctx context.Context, id int64) (*model.MetroArea, error) {
	var m model.MetroArea
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, cbsa_code FROM metro_areas WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.CBSACode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get metro %d", id)
	}
	return &m, nil
}

func (s *PostgresStore) ListMetros(ctx context.Context) ([]model.MetroArea, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, cbsa_code FROM metro_areas ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metros")
	}
	defer rows.Close()

	var out []model.MetroArea
	for rows.Next() {
		var m model.MetroArea
		if err := rows.Scan(&m.ID, &m.Name, &m.CBSACode); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metro")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertLocation(ctx context.Context, l *model.Location) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO locations (city, state, metro_id) VALUES ($1, $2, $3)
		 ON CONFLICT (city, state) DO UPDATE SET metro_id = EXCLUDED.metro_id
		 RETURNING id`,
		l.City, l.State, nullInt(l.MetroID),
	).Scan(&l.ID)
	return eris.Wrapf(err, "postgres: upsert location %s, %s", l.City, l.State)
}

func (s *PostgresStore) GetLocation(ctx context.Context, city, state string) (*model.Location, error) {
	var l model.Location
	err := s.pool.QueryRow(ctx,
		`SELECT id, city, state, metro_id FROM locations WHERE city = $1 AND state = $2`, city, state,
	).Scan(&l.ID, &l.City, &l.State, &l.MetroID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get location %s, %s", city, state)
	}
	return &l, nil
}

func (s *PostgresStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, city, state, metro_id FROM locations ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.City, &l.State, &l.MetroID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertTitleRule(ctx context.Context, r *model.TitleRule) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO title_rules (pattern, role_id, seniority, confidence, priority) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (pattern) DO UPDATE SET role_id = EXCLUDED.role_id, seniority = EXCLUDED.seniority,
			confidence = EXCLUDED.confidence, priority = EXCLUDED.priority
		 RETURNING id`,
		r.Pattern, r.RoleID, string(r.Seniority), r.Confidence, r.Priority,
	).Scan(&r.ID)
	return eris.Wrapf(err, "postgres: upsert title rule %q", r.Pattern)
}

func (s *PostgresStore) ListTitleRules(ctx context.Context) ([]model.TitleRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pattern, role_id, seniority, confidence, priority FROM title_rules ORDER BY priority, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list title rules")
	}
	defer rows.Close()

	var out []model.TitleRule
	for rows.Next() {
		var r model.TitleRule
		var seniority string
		if err := rows.Scan(&r.ID, &r.Pattern, &r.RoleID, &seniority, &r.Confidence, &r.Priority); err != nil {
			return nil, eris.Wrap(err, "postgres: scan title rule")
		}
		r.Seniority = model.Seniority(seniority)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertRawRecord(ctx context.Context, r *model.RawRecord) (bool, error) {
	if r.IngestedAt.IsZero() {
		r.IngestedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO raw_records (source_id, natural_key, raw_company, raw_location, raw_title, raw_industry, raw_salary, payload, observed_at, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (source_id, natural_key) DO NOTHING
		 RETURNING id`,
		r.SourceID, r.NaturalKey, r.RawCompany, r.RawLocation, r.RawTitle, r.RawIndustry,
		nullFloat(r.RawSalary), r.Payload, nullTime(r.ObservedAt), r.IngestedAt.UTC(),
	).Scan(&r.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrapf(err, "postgres: insert raw record %s", r.NaturalKey)
	}

	// Conflict: the record was already ingested.
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM raw_records WHERE source_id = $1 AND natural_key = $2`,
		r.SourceID, r.NaturalKey,
	).Scan(&r.ID)
	return false, eris.Wrap(err, "postgres: raw record lookup")
}

// BulkUpsertRawRecords loads one source's batch through a temp-table
// COPY and returns only the rows that were new. A quarterly disclosure
// file can carry hundreds of thousands of rows, and on re-ingestion
// nearly all of them conflict on the natural key.
func (s *PostgresStore) BulkUpsertRawRecords(ctx context.Context, recs []model.RawRecord) ([]model.RawRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	sourceID := recs[0].SourceID

	var maxID int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM raw_records`).Scan(&maxID); err != nil {
		return nil, eris.Wrap(err, "postgres: raw record high-water mark")
	}

	now := time.Now().UTC()
	rows := make([][]any, len(recs))
	for i := range recs {
		r := &recs[i]
		if r.IngestedAt.IsZero() {
			r.IngestedAt = now
		}
		rows[i] = []any{
			r.SourceID, r.NaturalKey, r.RawCompany, r.RawLocation, r.RawTitle,
			r.RawIndustry, nullFloat(r.RawSalary), r.Payload, nullTime(r.ObservedAt), r.IngestedAt.UTC(),
		}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "raw_records",
		Columns: []string{
			"source_id", "natural_key", "raw_company", "raw_location", "raw_title",
			"raw_industry", "raw_salary", "payload", "observed_at", "ingested_at",
		},
		ConflictKeys: []string{"source_id", "natural_key"},
		UpdateCols:   []string{},
	}, rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: bulk raw record upsert")
	}

	out, err := s.pool.Query(ctx,
		`SELECT id, source_id, natural_key, raw_company, raw_location, raw_title, raw_industry, raw_salary, payload, observed_at, ingested_at
		 FROM raw_records WHERE source_id = $1 AND id > $2 ORDER BY id`, sourceID, maxID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bulk-created raw records")
	}
	defer out.Close()

	var created []model.RawRecord
	for out.Next() {
		var r model.RawRecord
		if err := out.Scan(&r.ID, &r.SourceID, &r.NaturalKey, &r.RawCompany, &r.RawLocation, &r.RawTitle,
			&r.RawIndustry, &r.RawSalary, &r.Payload, &r.ObservedAt, &r.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bulk-created raw record")
		}
		created = append(created, r)
	}
	return created, out.Err()
}

func (s *PostgresStore) GetRawRecord(ctx context.Context, id int64) (*model.RawRecord, error) {
	var r model.RawRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_id, natural_key, raw_company, raw_location, raw_title, raw_industry, raw_salary, payload, observed_at, ingested_at
		 FROM raw_records WHERE id = $1`, id,
	).Scan(&r.ID, &r.SourceID, &r.NaturalKey, &r.RawCompany, &r.RawLocation, &r.RawTitle,
		&r.RawIndustry, &r.RawSalary, &r.Payload, &r.ObservedAt, &r.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get raw record %d", id)
	}
	return &r, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (name, normalized_name, industry, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.NormalizedName, c.Industry, c.CreatedAt.UTC(),
	).Scan(&c.ID)
	return eris.Wrapf(err, "postgres: insert company %s", c.NormalizedName)
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	return s.scanCompany(s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies WHERE id = $1`, id))
}

func (s *PostgresStore) GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error) {
	return s.scanCompany(s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies WHERE normalized_name = $1`, normalized))
}

func (s *PostgresStore) scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan company")
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, industry, created_at FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCompanyAlias(ctx context.Context, a *model.CompanyAlias) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO company_aliases (company_id, alias, normalized) VALUES ($1, $2, $3)
		 ON CONFLICT (normalized) DO NOTHING
		 RETURNING id`,
		a.CompanyID, a.Alias, a.Normalized,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM company_aliases WHERE normalized = $1`, a.Normalized,
		).Scan(&a.ID)
	}
	return eris.Wrapf(err, "postgres: insert alias %s", a.Normalized)
}

func (s *PostgresStore) GetCompanyAlias(ctx context.Context, normalized string) (*model.CompanyAlias, error) {
	var a model.CompanyAlias
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, alias, normalized FROM company_aliases WHERE normalized = $1`, normalized,
	).Scan(&a.ID, &a.CompanyID, &a.Alias, &a.Normalized)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get alias %s", normalized)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateCompanyIndustry(ctx context.Context, id int64, industry string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE companies SET industry = $1 WHERE id = $2`, industry, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company industry %d", id)
	}
	return checkTag(tag, "company", id)
}

func (s *PostgresStore) RepointCompanyRefs(ctx context.Context, fromID, toID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin repoint")
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`UPDATE company_aliases SET company_id = $1 WHERE company_id = $2`,
		`UPDATE observed_jobs SET company_id = $1 WHERE company_id = $2`,
	} {
		if _, err := tx.Exec(ctx, q, toID, fromID); err != nil {
			return eris.Wrapf(err, "postgres: repoint company %d -> %d", fromID, toID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit repoint")
}

func (s *PostgresStore) DeleteArchetypesForCompany(ctx context.Context, companyID int64) ([]model.ArchetypeKey, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM archetypes WHERE company_id = $1 RETURNING metro_id, role_id, seniority`, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: delete archetypes for company %d", companyID)
	}
	defer rows.Close()

	var keys []model.ArchetypeKey
	for rows.Next() {
		var k model.ArchetypeKey
		var seniority string
		if err := rows.Scan(&k.MetroID, &k.RoleID, &seniority); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deleted archetype key")
		}
		k.CompanyID = companyID
		k.Seniority = model.Seniority(seniority)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) DeleteCompany(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete company %d", id)
	}
	return checkTag(tag, "company", id)
}

func (s *PostgresStore) UpsertObservedJob(ctx context.Context, j *model.ObservedJob) (bool, error) {
	var existingID int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM observed_jobs WHERE raw_record_id = $1`, j.RawRecordID,
	).Scan(&existingID)
	switch {
	case err == nil:
		j.ID = existingID
		_, err = s.pool.Exec(ctx,
			`UPDATE observed_jobs SET company_id = $1, location_id = $2, location_unresolved = $3, role_id = $4,
				seniority = $5, salary = $6, source_id = $7, observed_at = $8, stale = $9 WHERE id = $10`,
			j.CompanyID, nullInt(j.LocationID), j.LocationUnresolved, j.RoleID,
			string(j.Seniority), nullFloat(j.Salary), j.SourceID, j.ObservedAt.UTC(), j.Stale, existingID,
		)
		return false, eris.Wrapf(err, "postgres: update observed job %d", existingID)
	case !errors.Is(err, pgx.ErrNoRows):
		return false, eris.Wrap(err, "postgres: observed job lookup")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO observed_jobs (raw_record_id, company_id, location_id, location_unresolved, role_id, seniority, salary, source_id, observed_at, stale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		j.RawRecordID, j.CompanyID, nullInt(j.LocationID), j.LocationUnresolved,
		j.RoleID, string(j.Seniority), nullFloat(j.Salary), j.SourceID, j.ObservedAt.UTC(), j.Stale,
	).Scan(&j.ID)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert observed job for raw record %d", j.RawRecordID)
	}
	return true, nil
}

func (s *PostgresStore) MarkStaleObservedJobs(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE observed_jobs SET stale = true WHERE observed_at < $1 AND NOT stale`, before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark stale observed jobs")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListObservedJobs(ctx context.Context, filter ObservedJobFilter) ([]model.ObservedJob, error) {
	q := `SELECT ` + observedJobCols + ` FROM observed_jobs WHERE true`
	var args []any
	if filter.CompanyID != 0 {
		args = append(args, filter.CompanyID)
		q += ` AND company_id = $` + strconv.Itoa(len(args))
	}
	if filter.RoleID != 0 {
		args = append(args, filter.RoleID)
		q += ` AND role_id = $` + strconv.Itoa(len(args))
	}
	if filter.WithSalary {
		q += ` AND salary IS NOT NULL`
	}
	if !filter.IncludeStale {
		q += ` AND NOT stale`
	}
	q += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			q += ` OFFSET $` + strconv.Itoa(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observed jobs")
	}
	defer rows.Close()
	return scanObservedJobsPG(rows)
}

func (s *PostgresStore) ListObservedJobsForKey(ctx context.Context, key model.ArchetypeKey) ([]model.ObservedJob, error) {
	var metro int64
	if key.MetroID != nil {
		metro = *key.MetroID
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+observedJobCols+` FROM observed_jobs o
		 WHERE o.company_id = $1 AND o.role_id = $2 AND o.seniority = $3 AND NOT o.stale
		 AND COALESCE((SELECT metro_id FROM locations l WHERE l.id = o.location_id), 0) = $4
		 ORDER BY o.id`,
		key.CompanyID, key.RoleID, string(key.Seniority), metro)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observed jobs for key")
	}
	defer rows.Close()
	return scanObservedJobsPG(rows)
}

func (s *PostgresStore) DistinctArchetypeKeys(ctx context.Context) ([]model.ArchetypeKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT o.company_id, l.metro_id, o.role_id, o.seniority
		 FROM observed_jobs o LEFT JOIN locations l ON l.id = o.location_id
		 WHERE NOT o.stale
		 ORDER BY o.company_id, o.role_id, o.seniority`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: distinct archetype keys")
	}
	defer rows.Close()

	var keys []model.ArchetypeKey
	for rows.Next() {
		var k model.ArchetypeKey
		var seniority string
		if err := rows.Scan(&k.CompanyID, &k.MetroID, &k.RoleID, &seniority); err != nil {
			return nil, eris.Wrap(err, "postgres: scan archetype key")
		}
		k.Seniority = model.Seniority(seniority)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanObservedJobsPG(rows pgx.Rows) ([]model.ObservedJob, error) {
	var out []model.ObservedJob
	for rows.Next() {
		var j model.ObservedJob
		var seniority string
		if err := rows.Scan(&j.ID, &j.RawRecordID, &j.CompanyID, &j.LocationID, &j.LocationUnresolved,
			&j.RoleID, &seniority, &j.Salary, &j.SourceID, &j.ObservedAt, &j.Stale); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observed job")
		}
		j.Seniority = model.Seniority(seniority)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertArchetype(ctx context.Context, a *model.Archetype) error {
	a.UpdatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO archetypes (company_id, metro_id, role_id, seniority, record_type,
			salary_p25, salary_p50, salary_p75, salary_mean, salary_stddev,
			headcount_p10, headcount_p50, headcount_p90,
			confidence, existence_score, salary_score, headcount_score, existence_probability, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (company_id, COALESCE(metro_id, 0), role_id, seniority) DO UPDATE SET
			record_type = EXCLUDED.record_type,
			salary_p25 = EXCLUDED.salary_p25, salary_p50 = EXCLUDED.salary_p50, salary_p75 = EXCLUDED.salary_p75,
			salary_mean = EXCLUDED.salary_mean, salary_stddev = EXCLUDED.salary_stddev,
			headcount_p10 = EXCLUDED.headcount_p10, headcount_p50 = EXCLUDED.headcount_p50, headcount_p90 = EXCLUDED.headcount_p90,
			confidence = EXCLUDED.confidence, existence_score = EXCLUDED.existence_score,
			salary_score = EXCLUDED.salary_score, headcount_score = EXCLUDED.headcount_score,
			existence_probability = EXCLUDED.existence_probability, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		a.CompanyID, nullInt(a.MetroID), a.RoleID, string(a.Seniority), string(a.Type),
		nullFloat(a.SalaryP25), nullFloat(a.SalaryP50), nullFloat(a.SalaryP75),
		nullFloat(a.SalaryMean), nullFloat(a.SalaryStddev),
		nullFloat(a.HeadcountP10), nullFloat(a.HeadcountP50), nullFloat(a.HeadcountP90),
		a.Confidence, a.ExistenceScore, a.SalaryScore, a.HeadcountScore,
		nullFloat(a.ExistenceProbability), a.UpdatedAt,
	).Scan(&a.ID)
	return eris.Wrap(err, "postgres: upsert archetype")
}

func (s *PostgresStore) GetArchetypeByKey(ctx context.Context, key model.ArchetypeKey) (*model.Archetype, error) {
	var metro int64
	if key.MetroID != nil {
		metro = *key.MetroID
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+archetypeCols+` FROM archetypes
		 WHERE company_id = $1 AND COALESCE(metro_id, 0) = $2 AND role_id = $3 AND seniority = $4`,
		key.CompanyID, metro, key.RoleID, string(key.Seniority))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get archetype by key")
	}
	defer rows.Close()

	out, err := scanArchetypesPG(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (s *PostgresStore) QueryArchetypes(ctx context.Context, filter ArchetypeFilter) ([]model.Archetype, error) {
	q := `SELECT ` + archetypeCols + ` FROM archetypes WHERE true`
	var args []any
	if filter.CompanyID != 0 {
		args = append(args, filter.CompanyID)
		q += ` AND company_id = $` + strconv.Itoa(len(args))
	}
	if filter.MetroID != nil {
		args = append(args, *filter.MetroID)
		q += ` AND COALESCE(metro_id, 0) = $` + strconv.Itoa(len(args))
	}
	if filter.RoleID != 0 {
		args = append(args, filter.RoleID)
		q += ` AND role_id = $` + strconv.Itoa(len(args))
	}
	if filter.Seniority != "" {
		args = append(args, string(filter.Seniority))
		q += ` AND seniority = $` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		q += ` AND record_type = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY company_id, role_id, seniority`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			q += ` OFFSET $` + strconv.Itoa(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query archetypes")
	}
	defer rows.Close()
	return scanArchetypesPG(rows)
}

func scanArchetypesPG(rows pgx.Rows) ([]model.Archetype, error) {
	var out []model.Archetype
	for rows.Next() {
		var a model.Archetype
		var seniority, recordType string
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.MetroID, &a.RoleID, &seniority, &recordType,
			&a.SalaryP25, &a.SalaryP50, &a.SalaryP75, &a.SalaryMean, &a.SalaryStddev,
			&a.HeadcountP10, &a.HeadcountP50, &a.HeadcountP90,
			&a.Confidence, &a.ExistenceScore, &a.SalaryScore, &a.HeadcountScore,
			&a.ExistenceProbability, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan archetype")
		}
		a.Seniority = model.Seniority(seniority)
		a.Type = model.RecordType(recordType)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceEvidence(ctx context.Context, archetypeID int64, evidence []model.ArchetypeEvidence) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin evidence replace")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM archetype_evidence WHERE archetype_id = $1`, archetypeID); err != nil {
		return eris.Wrapf(err, "postgres: clear evidence for archetype %d", archetypeID)
	}
	for i := range evidence {
		e := &evidence[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO archetype_evidence (archetype_id, observed_job_id, model_run_id, weight)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			archetypeID, nullInt(e.ObservedJobID), e.ModelRunID, e.Weight,
		).Scan(&e.ID)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert evidence for archetype %d", archetypeID)
		}
		e.ArchetypeID = archetypeID
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit evidence replace")
}

func (s *PostgresStore) ListEvidence(ctx context.Context, archetypeID int64) ([]model.ArchetypeEvidence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, archetype_id, observed_job_id, model_run_id, weight
		 FROM archetype_evidence WHERE archetype_id = $1 ORDER BY id`, archetypeID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list evidence for archetype %d", archetypeID)
	}
	defer rows.Close()

	var out []model.ArchetypeEvidence
	for rows.Next() {
		var e model.ArchetypeEvidence
		if err := rows.Scan(&e.ID, &e.ArchetypeID, &e.ObservedJobID, &e.ModelRunID, &e.Weight); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateModelRun(ctx context.Context, run *model.ModelRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_runs (id, model, status, snapshot_at, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Model, string(run.Status), run.SnapshotAt.UTC(), run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert model run %s", run.ID)
}

func (s *PostgresStore) CompleteModelRun(ctx context.Context, id string, status model.ModelRunStatus, metrics map[string]float64) error {
	var metricsJSON any
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal metrics")
		}
		metricsJSON = string(b)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE model_runs SET status = $1, finished_at = $2, metrics = $3::jsonb WHERE id = $4`,
		string(status), time.Now().UTC(), metricsJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete model run %s", id)
	}
	return checkTag(tag, "model run", id)
}

func (s *PostgresStore) GetModelRun(ctx context.Context, id string) (*model.ModelRun, error) {
	var run model.ModelRun
	var status string
	var metricsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, model, status, snapshot_at, started_at, finished_at, metrics FROM model_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Model, &status, &run.SnapshotAt, &run.StartedAt, &run.FinishedAt, &metricsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get model run %s", id)
	}
	run.Status = model.ModelRunStatus(status)
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &run.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run metrics")
		}
	}
	return &run, nil
}

func (s *PostgresStore) HasActiveModelRun(ctx context.Context, modelName string) (bool, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM model_runs WHERE model = $1 AND status = $2`,
		modelName, string(model.RunRunning),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: active run check for %s", modelName)
	}
	return n > 0, nil
}

func (s *PostgresStore) CreateReviewItem(ctx context.Context, item *model.ReviewQueueItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO review_queue (raw_record_id, reason, raw_title, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (raw_record_id) DO NOTHING
		 RETURNING id`,
		item.RawRecordID, item.Reason, item.RawTitle, item.CreatedAt.UTC(),
	).Scan(&item.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrapf(err, "postgres: insert review item for raw record %d", item.RawRecordID)
	}
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM review_queue WHERE raw_record_id = $1`, item.RawRecordID,
	).Scan(&item.ID)
	return false, eris.Wrap(err, "postgres: review item lookup")
}

func (s *PostgresStore) GetReviewItem(ctx context.Context, id int64) (*model.ReviewQueueItem, error) {
	var item model.ReviewQueueItem
	var resolutionJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, raw_record_id, reason, raw_title, resolved, resolution, created_at
		 FROM review_queue WHERE id = $1`, id,
	).Scan(&item.ID, &item.RawRecordID, &item.Reason, &item.RawTitle, &item.Resolved, &resolutionJSON, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get review item %d", id)
	}
	if len(resolutionJSON) > 0 {
		var res model.ReviewResolution
		if err := json.Unmarshal(resolutionJSON, &res); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal review resolution")
		}
		item.Resolution = &res
	}
	return &item, nil
}

func (s *PostgresStore) ListPendingReviews(ctx context.Context, limit int) ([]model.ReviewQueueItem, error) {
	q := `SELECT id, raw_record_id, reason, raw_title, resolved, resolution, created_at
		FROM review_queue WHERE NOT resolved ORDER BY id`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending reviews")
	}
	defer rows.Close()

	var out []model.ReviewQueueItem
	for rows.Next() {
		var item model.ReviewQueueItem
		var resolutionJSON []byte
		if err := rows.Scan(&item.ID, &item.RawRecordID, &item.Reason, &item.RawTitle,
			&item.Resolved, &resolutionJSON, &item.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review item")
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ResolveReview(ctx context.Context, id int64, resolution model.ReviewResolution) error {
	b, err := json.Marshal(resolution)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review resolution")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET resolved = true, resolution = $1::jsonb WHERE id = $2 AND NOT resolved`,
		string(b), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve review %d", id)
	}
	return checkTag(tag, "pending review", id)
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO audit_log (entity, entity_id, action, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.Entity, e.EntityID, e.Action, e.Detail, e.CreatedAt.UTC(),
	).Scan(&e.ID)
	return eris.Wrap(err, "postgres: append audit")
}

func (s *PostgresStore) Counts(ctx context.Context) (*QualityCounts, error) {
	var c QualityCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM raw_records),
			(SELECT COUNT(*) FROM observed_jobs WHERE NOT stale),
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM archetypes),
			(SELECT COUNT(*) FROM archetypes WHERE record_type = 'observed'),
			(SELECT COUNT(*) FROM archetypes WHERE record_type = 'inferred'),
			(SELECT COUNT(*) FROM observed_jobs WHERE location_unresolved AND NOT stale),
			(SELECT COUNT(*) FROM review_queue WHERE NOT resolved)`,
	).Scan(&c.RawRecords, &c.ObservedJobs, &c.Companies, &c.Archetypes,
		&c.ObservedArchetypes, &c.InferredArchetypes, &c.UnresolvedLocation, &c.PendingReviews)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: quality counts")
	}
	return &c, nil
}

func checkTag(tag pgconn.CommandTag, entity string, id any) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: %s %v not found", entity, id)
	}
	return nil
}

