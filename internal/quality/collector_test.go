package quality

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

type fixture struct {
	st   *store.SQLiteStore
	src  model.Source
	role model.CanonicalRole
	co   model.Company
	run  model.ModelRun
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	f := &fixture{st: st}
	f.src = model.Source{Name: "state_payroll", Category: model.CategoryPayroll, Tier: model.TierA, Weight: 0.95}
	require.NoError(t, st.UpsertSource(ctx, &f.src))
	f.role = model.CanonicalRole{Name: "Software Engineer"}
	require.NoError(t, st.UpsertRole(ctx, &f.role))
	f.co = model.Company{Name: "Acme", NormalizedName: "ACME"}
	require.NoError(t, st.CreateCompany(ctx, &f.co))
	f.run = model.ModelRun{ID: "run-1", Model: model.ModelExistence, Status: model.RunComplete, SnapshotAt: time.Now().UTC()}
	require.NoError(t, st.CreateModelRun(ctx, &f.run))
	return f
}

func (f *fixture) addObservedJob(t *testing.T, key string) model.ObservedJob {
	t.Helper()
	ctx := context.Background()
	raw := model.RawRecord{SourceID: f.src.ID, NaturalKey: key, RawCompany: f.co.Name}
	_, err := f.st.UpsertRawRecord(ctx, &raw)
	require.NoError(t, err)
	job := model.ObservedJob{
		RawRecordID: raw.ID, CompanyID: f.co.ID, RoleID: f.role.ID,
		Seniority: model.SeniorityMid, SourceID: f.src.ID, ObservedAt: time.Now().UTC(),
	}
	_, err = f.st.UpsertObservedJob(ctx, &job)
	require.NoError(t, err)
	return job
}

func (f *fixture) addArchetype(t *testing.T, sen model.Seniority, typ model.RecordType, confidence float64, prob *float64) model.Archetype {
	t.Helper()
	a := model.Archetype{
		CompanyID: f.co.ID, RoleID: f.role.ID, Seniority: sen,
		Type: typ, Confidence: confidence, ExistenceProbability: prob,
	}
	require.NoError(t, f.st.UpsertArchetype(context.Background(), &a))
	return a
}

func fl(v float64) *float64 { return &v }

func TestCollect_HealthyPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.addObservedJob(t, "k1")
	obs := f.addArchetype(t, model.SeniorityMid, model.RecordObserved, 0.7, nil)
	require.NoError(t, f.st.ReplaceEvidence(ctx, obs.ID, []model.ArchetypeEvidence{
		{ObservedJobID: &job.ID, Weight: f.src.Weight},
	}))

	inf := f.addArchetype(t, model.SenioritySenior, model.RecordInferred, 0.35, fl(0.8))
	require.NoError(t, f.st.ReplaceEvidence(ctx, inf.ID, []model.ArchetypeEvidence{
		{ModelRunID: &f.run.ID, Weight: 0.8},
	}))

	report, err := NewCollector(f.st).Collect(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Violations)
	assert.Equal(t, int64(2), report.Counts.Archetypes)
	assert.Equal(t, 0.5, report.Coverage)
	assert.Equal(t, 1.0, report.ResolutionRate)
	assert.Equal(t, int64(1), report.Counts.InferredArchetypes)
}

func TestCollect_FlagsObservedWithoutEvidence(t *testing.T) {
	f := newFixture(t)

	a := f.addArchetype(t, model.SeniorityMid, model.RecordObserved, 0.7, nil)

	report, err := NewCollector(f.st).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Violations, 1)
	assert.Equal(t, a.ID, report.Violations[0].ArchetypeID)
	assert.Contains(t, report.Violations[0].Problem, "observed-job evidence")
}

func TestCollect_FlagsDishonestInferred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.addObservedJob(t, "k1")
	obs := f.addArchetype(t, model.SeniorityMid, model.RecordObserved, 0.6, nil)
	require.NoError(t, f.st.ReplaceEvidence(ctx, obs.ID, []model.ArchetypeEvidence{
		{ObservedJobID: &job.ID, Weight: f.src.Weight},
	}))

	// No probability, no model-run evidence, and confidence at the
	// observed record's level.
	bad := f.addArchetype(t, model.SenioritySenior, model.RecordInferred, 0.9, nil)

	report, err := NewCollector(f.st).Collect(ctx)
	require.NoError(t, err)

	problems := make(map[string]bool)
	for _, v := range report.Violations {
		assert.Equal(t, bad.ID, v.ArchetypeID)
		problems[v.Problem] = true
	}
	assert.Len(t, problems, 3)
}

func TestCollect_EmptyStore(t *testing.T) {
	f := newFixture(t)

	report, err := NewCollector(f.st).Collect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Coverage)
	assert.Zero(t, report.ResolutionRate)
	assert.Empty(t, report.Violations)
}
