package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// seedReference inserts a source, role, metro, and location so that
// foreign keys resolve in downstream tests.
func seedReference(t *testing.T, st *SQLiteStore) (source model.Source, role model.CanonicalRole, metro model.MetroArea, loc model.Location) {
	t.Helper()
	ctx := context.Background()

	source = model.Source{Name: "state_payroll", Category: model.CategoryPayroll, Tier: model.TierA, Weight: 0.95}
	require.NoError(t, st.UpsertSource(ctx, &source))

	role = model.CanonicalRole{Name: "Software Engineer", OccupationCode: "15-1252", Family: "Engineering"}
	require.NoError(t, st.UpsertRole(ctx, &role))

	metro = model.MetroArea{Name: "San Francisco-Oakland-Berkeley, CA", CBSACode: "41860"}
	require.NoError(t, st.UpsertMetro(ctx, &metro))

	loc = model.Location{City: "San Francisco", State: "CA", MetroID: &metro.ID}
	require.NoError(t, st.UpsertLocation(ctx, &loc))
	return source, role, metro, loc
}

func TestSQLite_UpsertSource_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	s1 := model.Source{Name: "visa_filings", Category: model.CategoryVisa, Tier: model.TierB, Weight: 0.8}
	require.NoError(t, st.UpsertSource(ctx, &s1))
	require.NotZero(t, s1.ID)

	s2 := model.Source{Name: "visa_filings", Category: model.CategoryVisa, Tier: model.TierB, Weight: 0.85}
	require.NoError(t, st.UpsertSource(ctx, &s2))
	assert.Equal(t, s1.ID, s2.ID)

	got, err := st.GetSourceByName(ctx, "visa_filings")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.85, got.Weight)
}

func TestSQLite_GetSourceByName_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetSourceByName(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpsertRawRecord_DuplicateNaturalKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, _, _, _ := seedReference(t, st)

	r1 := model.RawRecord{SourceID: source.ID, NaturalKey: "case-001", RawCompany: "Acme Corp.", RawTitle: "Engineer"}
	created, err := st.UpsertRawRecord(ctx, &r1)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, r1.ID)

	// Re-ingesting the same natural key is a no-op that resolves the
	// same row. The original content is never overwritten.
	r2 := model.RawRecord{SourceID: source.ID, NaturalKey: "case-001", RawCompany: "ACME CORPORATION", RawTitle: "Sr Engineer"}
	created, err = st.UpsertRawRecord(ctx, &r2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, r1.ID, r2.ID)

	got, err := st.GetRawRecord(ctx, r1.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Corp.", got.RawCompany)
}

func TestSQLite_CompanyAndAlias_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := model.Company{Name: "Acme Corp.", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))
	require.NotZero(t, c.ID)

	require.NoError(t, st.CreateCompanyAlias(ctx, &model.CompanyAlias{
		CompanyID: c.ID, Alias: "ACME Corporation", Normalized: "ACME",
	}))

	byName, err := st.GetCompanyByNormalizedName(ctx, "ACME")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, c.ID, byName.ID)

	alias, err := st.GetCompanyAlias(ctx, "ACME")
	require.NoError(t, err)
	require.NotNil(t, alias)
	assert.Equal(t, c.ID, alias.CompanyID)

	require.NoError(t, st.UpdateCompanyIndustry(ctx, c.ID, "Manufacturing"))
	got, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Manufacturing", got.Industry)
}

func TestSQLite_CreateCompanyAlias_DuplicateNormalized(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	a1 := model.CompanyAlias{CompanyID: c.ID, Alias: "Acme", Normalized: "ACME"}
	require.NoError(t, st.CreateCompanyAlias(ctx, &a1))
	a2 := model.CompanyAlias{CompanyID: c.ID, Alias: "acme inc", Normalized: "ACME"}
	require.NoError(t, st.CreateCompanyAlias(ctx, &a2))
	assert.Equal(t, a1.ID, a2.ID)
}

func TestSQLite_ObservedJob_UpsertByRawRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, _, loc := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k1", RawCompany: "Acme"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)

	salary := 150000.0
	job := model.ObservedJob{
		RawRecordID: raw.ID,
		CompanyID:   c.ID,
		LocationID:  &loc.ID,
		RoleID:      role.ID,
		Seniority:   model.SenioritySenior,
		Salary:      &salary,
		SourceID:    source.ID,
		ObservedAt:  time.Now().UTC(),
	}
	created, err := st.UpsertObservedJob(ctx, &job)
	require.NoError(t, err)
	assert.True(t, created)

	// A rebuild for the same raw record updates in place.
	job2 := job
	job2.ID = 0
	job2.Seniority = model.SeniorityMid
	created, err = st.UpsertObservedJob(ctx, &job2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, job2.ID)

	jobs, err := st.ListObservedJobs(ctx, ObservedJobFilter{CompanyID: c.ID})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.SeniorityMid, jobs[0].Seniority)
	require.NotNil(t, jobs[0].Salary)
	assert.Equal(t, salary, *jobs[0].Salary)
}

func TestSQLite_MarkStaleObservedJobs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, _, loc := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	old := time.Now().UTC().AddDate(-2, 0, 0)
	fresh := time.Now().UTC()
	for i, observedAt := range []time.Time{old, fresh} {
		raw := model.RawRecord{SourceID: source.ID, NaturalKey: string(rune('a' + i)), RawCompany: "Acme"}
		_, err := st.UpsertRawRecord(ctx, &raw)
		require.NoError(t, err)
		job := model.ObservedJob{
			RawRecordID: raw.ID, CompanyID: c.ID, LocationID: &loc.ID, RoleID: role.ID,
			Seniority: model.SeniorityMid, SourceID: source.ID, ObservedAt: observedAt,
		}
		_, err = st.UpsertObservedJob(ctx, &job)
		require.NoError(t, err)
	}

	marked, err := st.MarkStaleObservedJobs(ctx, time.Now().UTC().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	// Stale jobs drop out of default listings but stay queryable.
	jobs, err := st.ListObservedJobs(ctx, ObservedJobFilter{CompanyID: c.ID})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	jobs, err = st.ListObservedJobs(ctx, ObservedJobFilter{CompanyID: c.ID, IncludeStale: true})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	// Already-stale rows are not re-marked.
	marked, err = st.MarkStaleObservedJobs(ctx, time.Now().UTC().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestSQLite_DistinctArchetypeKeys(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, metro, loc := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	for i, sen := range []model.Seniority{model.SenioritySenior, model.SenioritySenior, model.SeniorityMid} {
		raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k" + string(rune('a'+i)), RawCompany: "Acme"}
		_, err := st.UpsertRawRecord(ctx, &raw)
		require.NoError(t, err)
		_, err = st.UpsertObservedJob(ctx, &model.ObservedJob{
			RawRecordID: raw.ID, CompanyID: c.ID, LocationID: &loc.ID,
			RoleID: role.ID, Seniority: sen, SourceID: source.ID, ObservedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	keys, err := st.DistinctArchetypeKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, k := range keys {
		assert.Equal(t, c.ID, k.CompanyID)
		require.NotNil(t, k.MetroID)
		assert.Equal(t, metro.ID, *k.MetroID)
	}

	jobs, err := st.ListObservedJobsForKey(ctx, keys[1])
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)
}

func TestSQLite_Archetype_UpsertByKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, role, metro, _ := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	p50 := 150000.0
	a := model.Archetype{
		CompanyID: c.ID, MetroID: &metro.ID, RoleID: role.ID,
		Seniority: model.SenioritySenior, Type: model.RecordObserved,
		SalaryP50: &p50, Confidence: 0.7,
	}
	require.NoError(t, st.UpsertArchetype(ctx, &a))
	require.NotZero(t, a.ID)

	// Second upsert for the same key updates the existing row.
	p50b := 160000.0
	b := model.Archetype{
		CompanyID: c.ID, MetroID: &metro.ID, RoleID: role.ID,
		Seniority: model.SenioritySenior, Type: model.RecordObserved,
		SalaryP50: &p50b, Confidence: 0.8,
	}
	require.NoError(t, st.UpsertArchetype(ctx, &b))
	assert.Equal(t, a.ID, b.ID)

	got, err := st.GetArchetypeByKey(ctx, a.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.SalaryP50)
	assert.Equal(t, 160000.0, *got.SalaryP50)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestSQLite_Archetype_NilMetroKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, role, _, _ := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	a := model.Archetype{CompanyID: c.ID, RoleID: role.ID, Seniority: model.SeniorityMid, Type: model.RecordObserved}
	require.NoError(t, st.UpsertArchetype(ctx, &a))

	b := model.Archetype{CompanyID: c.ID, RoleID: role.ID, Seniority: model.SeniorityMid, Type: model.RecordObserved, Confidence: 0.5}
	require.NoError(t, st.UpsertArchetype(ctx, &b))
	assert.Equal(t, a.ID, b.ID)

	got, err := st.GetArchetypeByKey(ctx, model.ArchetypeKey{CompanyID: c.ID, RoleID: role.ID, Seniority: model.SeniorityMid})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.MetroID)
}

func TestSQLite_QueryArchetypes_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, role, metro, _ := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	require.NoError(t, st.UpsertArchetype(ctx, &model.Archetype{
		CompanyID: c.ID, MetroID: &metro.ID, RoleID: role.ID,
		Seniority: model.SenioritySenior, Type: model.RecordObserved,
	}))
	require.NoError(t, st.UpsertArchetype(ctx, &model.Archetype{
		CompanyID: c.ID, MetroID: &metro.ID, RoleID: role.ID,
		Seniority: model.SeniorityMid, Type: model.RecordInferred,
	}))

	all, err := st.QueryArchetypes(ctx, ArchetypeFilter{CompanyID: c.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inferred, err := st.QueryArchetypes(ctx, ArchetypeFilter{Type: model.RecordInferred})
	require.NoError(t, err)
	require.Len(t, inferred, 1)
	assert.Equal(t, model.SeniorityMid, inferred[0].Seniority)

	none, err := st.QueryArchetypes(ctx, ArchetypeFilter{CompanyID: c.ID + 100})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Evidence_Replace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, _, _ := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k1", RawCompany: "Acme"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)
	job := model.ObservedJob{
		RawRecordID: raw.ID, CompanyID: c.ID, RoleID: role.ID,
		Seniority: model.SenioritySenior, SourceID: source.ID, ObservedAt: time.Now().UTC(),
	}
	_, err = st.UpsertObservedJob(ctx, &job)
	require.NoError(t, err)

	a := model.Archetype{CompanyID: c.ID, RoleID: role.ID, Seniority: model.SenioritySenior, Type: model.RecordObserved}
	require.NoError(t, st.UpsertArchetype(ctx, &a))

	require.NoError(t, st.ReplaceEvidence(ctx, a.ID, []model.ArchetypeEvidence{
		{ObservedJobID: &job.ID, Weight: 0.95},
	}))

	ev, err := st.ListEvidence(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ev, 1)
	require.NotNil(t, ev[0].ObservedJobID)
	assert.Nil(t, ev[0].ModelRunID)

	// A resynthesis replaces evidence wholesale.
	runID := "run-1"
	require.NoError(t, st.CreateModelRun(ctx, &model.ModelRun{
		ID: runID, Model: model.ModelSalary, SnapshotAt: time.Now().UTC(),
	}))
	require.NoError(t, st.ReplaceEvidence(ctx, a.ID, []model.ArchetypeEvidence{
		{ModelRunID: &runID, Weight: 0.6},
	}))
	ev, err = st.ListEvidence(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, ev, 1)
	assert.Nil(t, ev[0].ObservedJobID)
	require.NotNil(t, ev[0].ModelRunID)
	assert.Equal(t, runID, *ev[0].ModelRunID)
}

func TestSQLite_MergeSupport_RepointAndDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, metro, loc := seedReference(t, st)

	survivor := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &survivor))
	dup := model.Company{Name: "Acme Corp", NormalizedName: "ACME CORP"}
	require.NoError(t, st.CreateCompany(ctx, &dup))

	raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k1", RawCompany: "Acme Corp"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)
	_, err = st.UpsertObservedJob(ctx, &model.ObservedJob{
		RawRecordID: raw.ID, CompanyID: dup.ID, LocationID: &loc.ID,
		RoleID: role.ID, Seniority: model.SeniorityMid, SourceID: source.ID, ObservedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, st.UpsertArchetype(ctx, &model.Archetype{
		CompanyID: dup.ID, MetroID: &metro.ID, RoleID: role.ID,
		Seniority: model.SeniorityMid, Type: model.RecordObserved,
	}))

	keys, err := st.DeleteArchetypesForCompany(ctx, dup.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, dup.ID, keys[0].CompanyID)

	require.NoError(t, st.RepointCompanyRefs(ctx, dup.ID, survivor.ID))
	require.NoError(t, st.DeleteCompany(ctx, dup.ID))

	jobs, err := st.ListObservedJobs(ctx, ObservedJobFilter{CompanyID: survivor.ID})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	got, err := st.GetCompany(ctx, dup.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ModelRun_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := model.ModelRun{ID: "run-abc", Model: model.ModelSalary, SnapshotAt: time.Now().UTC()}
	require.NoError(t, st.CreateModelRun(ctx, &run))

	active, err := st.HasActiveModelRun(ctx, model.ModelSalary)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = st.HasActiveModelRun(ctx, model.ModelHeadcount)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, st.CompleteModelRun(ctx, "run-abc", model.RunComplete, map[string]float64{"pinball_p50": 0.12}))

	got, err := st.GetModelRun(ctx, "run-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunComplete, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, 0.12, got.Metrics["pinball_p50"])

	active, err = st.HasActiveModelRun(ctx, model.ModelSalary)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSQLite_ReviewQueue_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, _, _ := seedReference(t, st)

	raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k1", RawCompany: "Acme", RawTitle: "Wizard of Light Bulb Moments"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)

	item := model.ReviewQueueItem{RawRecordID: raw.ID, Reason: model.ReasonLowConfidenceTitle, RawTitle: raw.RawTitle}
	created, err := st.CreateReviewItem(ctx, &item)
	require.NoError(t, err)
	assert.True(t, created)

	// Re-queueing the same record is a no-op.
	dup := model.ReviewQueueItem{RawRecordID: raw.ID, Reason: model.ReasonLowConfidenceTitle, RawTitle: raw.RawTitle}
	created, err = st.CreateReviewItem(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, item.ID, dup.ID)

	pending, err := st.ListPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, st.ResolveReview(ctx, item.ID, model.ReviewResolution{RoleID: role.ID, Seniority: model.SeniorityMid}))

	got, err := st.GetReviewItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Resolved)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, role.ID, got.Resolution.RoleID)

	// Resolving twice fails: the item is no longer pending.
	err = st.ResolveReview(ctx, item.ID, model.ReviewResolution{RoleID: role.ID, Seniority: model.SeniorityMid})
	require.Error(t, err)

	pending, err = st.ListPendingReviews(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLite_Counts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	source, role, _, _ := seedReference(t, st)

	c := model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &c))

	raw := model.RawRecord{SourceID: source.ID, NaturalKey: "k1", RawCompany: "Acme"}
	_, err := st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)
	_, err = st.UpsertObservedJob(ctx, &model.ObservedJob{
		RawRecordID: raw.ID, CompanyID: c.ID, RoleID: role.ID, LocationUnresolved: true,
		Seniority: model.SeniorityMid, SourceID: source.ID, ObservedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, st.UpsertArchetype(ctx, &model.Archetype{
		CompanyID: c.ID, RoleID: role.ID, Seniority: model.SeniorityMid, Type: model.RecordObserved,
	}))

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.RawRecords)
	assert.Equal(t, int64(1), counts.ObservedJobs)
	assert.Equal(t, int64(1), counts.Companies)
	assert.Equal(t, int64(1), counts.ObservedArchetypes)
	assert.Equal(t, int64(0), counts.InferredArchetypes)
	assert.Equal(t, int64(1), counts.UnresolvedLocation)
	assert.Equal(t, int64(0), counts.PendingReviews)
}

func TestSQLite_TitleRules_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, role, _, _ := seedReference(t, st)

	r := model.TitleRule{Pattern: `software\s+engineer`, RoleID: role.ID, Confidence: 0.95, Priority: 10}
	require.NoError(t, st.UpsertTitleRule(ctx, &r))
	require.NotZero(t, r.ID)

	r.Confidence = 0.9
	require.NoError(t, st.UpsertTitleRule(ctx, &r))

	rules, err := st.ListTitleRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 0.9, rules[0].Confidence)
}
