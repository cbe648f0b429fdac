// Package model defines the canonical data model for the labor-market
// pipeline: sources, raw records, resolved entities, observed jobs, and
// the archetype records the pipeline produces.
package model

import (
	"time"
)

// SourceCategory classifies where a source's data comes from.
type SourceCategory string

// Source categories.
const (
	CategoryPayroll SourceCategory = "payroll"
	CategoryVisa    SourceCategory = "visa"
	CategoryPosting SourceCategory = "posting"
	CategoryMacro   SourceCategory = "macro_prior"
)

// ReliabilityTier is a coarse bucket ranking source trustworthiness.
type ReliabilityTier string

// Reliability tiers, most trustworthy first.
const (
	TierA ReliabilityTier = "A"
	TierB ReliabilityTier = "B"
	TierC ReliabilityTier = "C"
)

// Source is immutable reference data describing one ingestion source.
type Source struct {
	ID       int64           `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Category SourceCategory  `json:"category" db:"category"`
	Tier     ReliabilityTier `json:"tier" db:"tier"`
	Weight   float64         `json:"weight" db:"weight"` // base reliability weight, 0-1
}

// RawRecord is one ingested row exactly as received. Append-only; never
// mutated after insert. NaturalKey plus SourceID is the idempotency key
// for re-ingestion.
type RawRecord struct {
	ID          int64      `json:"id" db:"id"`
	SourceID    int64      `json:"source_id" db:"source_id"`
	NaturalKey  string     `json:"natural_key" db:"natural_key"`
	RawCompany  string     `json:"raw_company" db:"raw_company"`
	RawLocation string     `json:"raw_location" db:"raw_location"`
	RawTitle    string     `json:"raw_title" db:"raw_title"`
	RawIndustry string     `json:"raw_industry,omitempty" db:"raw_industry"`
	RawSalary   *float64   `json:"raw_salary,omitempty" db:"raw_salary"`
	Payload     []byte     `json:"payload,omitempty" db:"payload"`
	ObservedAt  *time.Time `json:"observed_at,omitempty" db:"observed_at"`
	IngestedAt  time.Time  `json:"ingested_at" db:"ingested_at"`
}

// Company is a canonical employer identity keyed by normalized name.
type Company struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	Industry       string    `json:"industry,omitempty" db:"industry"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CompanyAlias maps a normalized raw-name variant to its canonical company.
type CompanyAlias struct {
	ID         int64  `json:"id" db:"id"`
	CompanyID  int64  `json:"company_id" db:"company_id"`
	Alias      string `json:"alias" db:"alias"`
	Normalized string `json:"normalized" db:"normalized"`
}

// MetroArea groups locations into a metropolitan statistical area.
type MetroArea struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	CBSACode string `json:"cbsa_code,omitempty" db:"cbsa_code"`
}

// Location is a canonical city/state pair, optionally linked to a metro.
type Location struct {
	ID      int64  `json:"id" db:"id"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	MetroID *int64 `json:"metro_id,omitempty" db:"metro_id"`
}

// Seniority is an ordinal career-level classification.
type Seniority string

// Seniority levels.
const (
	SeniorityIntern   Seniority = "intern"
	SeniorityEntry    Seniority = "entry"
	SeniorityMid      Seniority = "mid"
	SenioritySenior   Seniority = "senior"
	SeniorityLead     Seniority = "lead"
	SeniorityManager  Seniority = "manager"
	SeniorityDirector Seniority = "director"
	SeniorityExec     Seniority = "exec"
)

// seniorityOrder gives each level a stable ordinal for feature encoding
// and sorting.
var seniorityOrder = map[Seniority]int{
	SeniorityIntern:   0,
	SeniorityEntry:    1,
	SeniorityMid:      2,
	SenioritySenior:   3,
	SeniorityLead:     4,
	SeniorityManager:  5,
	SeniorityDirector: 6,
	SeniorityExec:     7,
}

// Rank returns the ordinal position of a seniority level, or -1 if unknown.
func (s Seniority) Rank() int {
	if r, ok := seniorityOrder[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a known seniority level.
func (s Seniority) Valid() bool {
	_, ok := seniorityOrder[s]
	return ok
}

// CanonicalRole is an entry in the fixed role taxonomy. The set is
// append-only reference data: new roles are added alongside matching
// rules, existing entries are never mutated per observation.
type CanonicalRole struct {
	ID             int64  `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	OccupationCode string `json:"occupation_code,omitempty" db:"occupation_code"` // SOC code
	Family         string `json:"family,omitempty" db:"family"`
	Category       string `json:"category,omitempty" db:"category"`
}

// TitleRule maps a raw-title pattern to a role with a confidence score.
// Rules are evaluated in priority order, first match wins; equal
// priorities tie-break by insertion (ID) order. Seniority, when set,
// overrides the lexical seniority cues for titles matching the rule.
type TitleRule struct {
	ID         int64     `json:"id" db:"id"`
	Pattern    string    `json:"pattern" db:"pattern"`
	RoleID     int64     `json:"role_id" db:"role_id"`
	Seniority  Seniority `json:"seniority,omitempty" db:"seniority"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Priority   int       `json:"priority" db:"priority"`
}

// ObservedJob is one resolved, immutable labor-market fact. Exactly one
// per successfully resolved RawRecord; never deleted, only marked stale.
type ObservedJob struct {
	ID                 int64     `json:"id" db:"id"`
	RawRecordID        int64     `json:"raw_record_id" db:"raw_record_id"`
	CompanyID          int64     `json:"company_id" db:"company_id"`
	LocationID         *int64    `json:"location_id,omitempty" db:"location_id"`
	LocationUnresolved bool      `json:"location_unresolved" db:"location_unresolved"`
	RoleID             int64     `json:"role_id" db:"role_id"`
	Seniority          Seniority `json:"seniority" db:"seniority"`
	Salary             *float64  `json:"salary,omitempty" db:"salary"`
	SourceID           int64     `json:"source_id" db:"source_id"`
	ObservedAt         time.Time `json:"observed_at" db:"observed_at"`
	Stale              bool      `json:"stale" db:"stale"`
}

// RecordType distinguishes directly-observed archetypes from
// model-inferred ones. The tag must survive all the way to consumers.
type RecordType string

// Record types.
const (
	RecordObserved RecordType = "observed"
	RecordInferred RecordType = "inferred"
)

// ArchetypeKey is the natural key of an archetype. A nil MetroID means
// the observations behind the key carried no resolvable metro.
type ArchetypeKey struct {
	CompanyID int64     `json:"company_id"`
	MetroID   *int64    `json:"metro_id,omitempty"`
	RoleID    int64     `json:"role_id"`
	Seniority Seniority `json:"seniority"`
}

// Archetype is the canonical output unit: one Company x Metro x Role x
// Seniority aggregate with salary and headcount distributions and a
// decomposed confidence score. Upserted idempotently by its key.
type Archetype struct {
	ID        int64      `json:"id" db:"id"`
	CompanyID int64      `json:"company_id" db:"company_id"`
	MetroID   *int64     `json:"metro_id,omitempty" db:"metro_id"`
	RoleID    int64      `json:"role_id" db:"role_id"`
	Seniority Seniority  `json:"seniority" db:"seniority"`
	Type      RecordType `json:"record_type" db:"record_type"`

	// Salary distribution (annual USD).
	SalaryP25    *float64 `json:"salary_p25,omitempty" db:"salary_p25"`
	SalaryP50    *float64 `json:"salary_p50,omitempty" db:"salary_p50"`
	SalaryP75    *float64 `json:"salary_p75,omitempty" db:"salary_p75"`
	SalaryMean   *float64 `json:"salary_mean,omitempty" db:"salary_mean"`
	SalaryStddev *float64 `json:"salary_stddev,omitempty" db:"salary_stddev"`

	// Headcount distribution.
	HeadcountP10 *float64 `json:"headcount_p10,omitempty" db:"headcount_p10"`
	HeadcountP50 *float64 `json:"headcount_p50,omitempty" db:"headcount_p50"`
	HeadcountP90 *float64 `json:"headcount_p90,omitempty" db:"headcount_p90"`

	// Confidence, composite plus sub-scores.
	Confidence      float64 `json:"confidence" db:"confidence"`
	ExistenceScore  float64 `json:"existence_score" db:"existence_score"`
	SalaryScore     float64 `json:"salary_score" db:"salary_score"`
	HeadcountScore  float64 `json:"headcount_score" db:"headcount_score"`
	ExistenceProbability *float64 `json:"existence_probability,omitempty" db:"existence_probability"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Key returns the archetype's natural key.
func (a *Archetype) Key() ArchetypeKey {
	return ArchetypeKey{
		CompanyID: a.CompanyID,
		MetroID:   a.MetroID,
		RoleID:    a.RoleID,
		Seniority: a.Seniority,
	}
}

// ArchetypeEvidence links an archetype to the observed job or model run
// that supports it. Exactly one of ObservedJobID and ModelRunID is set.
type ArchetypeEvidence struct {
	ID            int64   `json:"id" db:"id"`
	ArchetypeID   int64   `json:"archetype_id" db:"archetype_id"`
	ObservedJobID *int64  `json:"observed_job_id,omitempty" db:"observed_job_id"`
	ModelRunID    *string `json:"model_run_id,omitempty" db:"model_run_id"`
	Weight        float64 `json:"weight" db:"weight"`
}

// Model names used for model runs.
const (
	ModelSalary    = "salary"
	ModelHeadcount = "headcount"
	ModelExistence = "existence"
)

// ModelRunStatus tracks a training job's lifecycle.
type ModelRunStatus string

// Model run statuses.
const (
	RunRunning  ModelRunStatus = "running"
	RunComplete ModelRunStatus = "complete"
	RunFailed   ModelRunStatus = "failed"
)

// ModelRun records one offline training job over a point-in-time
// snapshot of observed data. Inferred archetypes reference the run that
// produced them.
type ModelRun struct {
	ID         string             `json:"id" db:"id"`
	Model      string             `json:"model" db:"model"`
	Status     ModelRunStatus     `json:"status" db:"status"`
	SnapshotAt time.Time          `json:"snapshot_at" db:"snapshot_at"`
	StartedAt  time.Time          `json:"started_at" db:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty" db:"finished_at"`
	Metrics    map[string]float64 `json:"metrics,omitempty" db:"metrics"`
}

// Review reasons.
const (
	ReasonLowConfidenceTitle = "low_confidence_title"
	ReasonEmptyTitle         = "empty_title"
	ReasonUnknownSeniority   = "unknown_seniority"
)

// ReviewResolution is a human correction applied to a queued record.
type ReviewResolution struct {
	RoleID    int64     `json:"role_id"`
	Seniority Seniority `json:"seniority"`
}

// ReviewQueueItem holds a raw record whose title mapping fell below the
// confidence threshold. Ingestion of the record is paused until the item
// is resolved.
type ReviewQueueItem struct {
	ID          int64             `json:"id" db:"id"`
	RawRecordID int64             `json:"raw_record_id" db:"raw_record_id"`
	Reason      string            `json:"reason" db:"reason"`
	RawTitle    string            `json:"raw_title" db:"raw_title"`
	Resolved    bool              `json:"resolved" db:"resolved"`
	Resolution  *ReviewResolution `json:"resolution,omitempty" db:"resolution"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// AuditEntry records a manual mutation of derived state. Derived tables
// are otherwise fully reproducible from raw records and model artifacts.
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	Entity    string    `json:"entity" db:"entity"`
	EntityID  int64     `json:"entity_id" db:"entity_id"`
	Action    string    `json:"action" db:"action"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HeadcountTier labels the provenance quality of a headcount figure.
type HeadcountTier string

// Headcount confidence tiers.
const (
	HeadcountObserved HeadcountTier = "high"   // direct observation
	HeadcountTemplate HeadcountTier = "medium" // template from >= 50 companies
	HeadcountSparse   HeadcountTier = "low"    // template from < 50 companies
)
