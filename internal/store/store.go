package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labor-atlas/internal/model"
)

// ObservedJobFilter specifies criteria for listing observed jobs.
// Zero-valued fields match everything.
type ObservedJobFilter struct {
	CompanyID    int64 `json:"company_id,omitempty"`
	RoleID       int64 `json:"role_id,omitempty"`
	WithSalary   bool  `json:"with_salary,omitempty"`
	IncludeStale bool  `json:"include_stale,omitempty"`
	Limit        int   `json:"limit,omitempty"`
	Offset       int   `json:"offset,omitempty"`
}

// ArchetypeFilter specifies criteria for querying archetypes. Zero or
// nil fields are wildcards.
type ArchetypeFilter struct {
	CompanyID int64            `json:"company_id,omitempty"`
	MetroID   *int64           `json:"metro_id,omitempty"`
	RoleID    int64            `json:"role_id,omitempty"`
	Seniority model.Seniority  `json:"seniority,omitempty"`
	Type      model.RecordType `json:"record_type,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
}

// QualityCounts is a point-in-time snapshot of pipeline health counters.
type QualityCounts struct {
	RawRecords         int64 `json:"raw_records"`
	ObservedJobs       int64 `json:"observed_jobs"`
	Companies          int64 `json:"companies"`
	Archetypes         int64 `json:"archetypes"`
	ObservedArchetypes int64 `json:"observed_archetypes"`
	InferredArchetypes int64 `json:"inferred_archetypes"`
	UnresolvedLocation int64 `json:"unresolved_location"`
	PendingReviews     int64 `json:"pending_reviews"`
}

// Store defines the persistence interface for the labor-market pipeline.
// Get methods return (nil, nil) when no row matches.
type Store interface {
	// Reference data
	UpsertSource(ctx context.Context, s *model.Source) error
	GetSourceByName(ctx context.Context, name string) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	UpsertRole(ctx context.Context, r *model.CanonicalRole) error
	ListRoles(ctx context.Context) ([]model.CanonicalRole, error)
	UpsertMetro(ctx context.Context, m *model.MetroArea) error
	GetMetro(ctx context.Context, id int64) (*model.MetroArea, error)
	ListMetros(ctx context.Context) ([]model.MetroArea, error)
	UpsertLocation(ctx context.Context, l *model.Location) error
	GetLocation(ctx context.Context, city, state string) (*model.Location, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
	UpsertTitleRule(ctx context.Context, r *model.TitleRule) error
	ListTitleRules(ctx context.Context) ([]model.TitleRule, error)

	// Raw records (append-only; re-ingestion is a no-op on the natural key)
	UpsertRawRecord(ctx context.Context, r *model.RawRecord) (created bool, err error)
	GetRawRecord(ctx context.Context, id int64) (*model.RawRecord, error)

	// Companies and aliases
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	CreateCompanyAlias(ctx context.Context, a *model.CompanyAlias) error
	GetCompanyAlias(ctx context.Context, normalized string) (*model.CompanyAlias, error)
	UpdateCompanyIndustry(ctx context.Context, id int64, industry string) error
	RepointCompanyRefs(ctx context.Context, fromID, toID int64) error
	DeleteArchetypesForCompany(ctx context.Context, companyID int64) ([]model.ArchetypeKey, error)
	DeleteCompany(ctx context.Context, id int64) error

	// Observed jobs
	UpsertObservedJob(ctx context.Context, j *model.ObservedJob) (created bool, err error)
	MarkStaleObservedJobs(ctx context.Context, before time.Time) (int64, error)
	ListObservedJobs(ctx context.Context, filter ObservedJobFilter) ([]model.ObservedJob, error)
	ListObservedJobsForKey(ctx context.Context, key model.ArchetypeKey) ([]model.ObservedJob, error)
	DistinctArchetypeKeys(ctx context.Context) ([]model.ArchetypeKey, error)

	// Archetypes and evidence
	UpsertArchetype(ctx context.Context, a *model.Archetype) error
	GetArchetypeByKey(ctx context.Context, key model.ArchetypeKey) (*model.Archetype, error)
	QueryArchetypes(ctx context.Context, filter ArchetypeFilter) ([]model.Archetype, error)
	ReplaceEvidence(ctx context.Context, archetypeID int64, evidence []model.ArchetypeEvidence) error
	ListEvidence(ctx context.Context, archetypeID int64) ([]model.ArchetypeEvidence, error)

	// Model runs
	CreateModelRun(ctx context.Context, run *model.ModelRun) error
	CompleteModelRun(ctx context.Context, id string, status model.ModelRunStatus, metrics map[string]float64) error
	GetModelRun(ctx context.Context, id string) (*model.ModelRun, error)
	HasActiveModelRun(ctx context.Context, modelName string) (bool, error)

	// Review queue
	CreateReviewItem(ctx context.Context, item *model.ReviewQueueItem) (created bool, err error)
	GetReviewItem(ctx context.Context, id int64) (*model.ReviewQueueItem, error)
	ListPendingReviews(ctx context.Context, limit int) ([]model.ReviewQueueItem, error)
	ResolveReview(ctx context.Context, id int64, res model.ReviewResolution) error

	// Audit and quality
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	Counts(ctx context.Context) (*QualityCounts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// BulkRawRecordUpserter is implemented by stores that can load a whole
// source batch at once. All records in one call share a source. The
// ingest pipeline takes this path for large files when available.
type BulkRawRecordUpserter interface {
	BulkUpsertRawRecords(ctx context.Context, recs []model.RawRecord) (created []model.RawRecord, err error)
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s", entity)
	}
	if n == 0 {
		return eris.Errorf("store: %s %v not found", entity, id)
	}
	return nil
}

// nullFloat converts an optional float for query parameters.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// nullInt converts an optional int64 for query parameters.
func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

// nullTime converts an optional timestamp for query parameters.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
