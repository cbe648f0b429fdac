package infer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func TestTrainSalary_MonotonicQuantiles(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	// Salaries step up with seniority, with spread inside each level.
	for i := 0; i < 10; i++ {
		b.addJob(t, co, "Software Engineer", model.SeniorityEntry, fl(80000+float64(i)*2000))
		b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(110000+float64(i)*2000))
		b.addJob(t, co, "Software Engineer", model.SenioritySenior, fl(150000+float64(i)*2000))
	}

	est, err := TrainSalary(b.snapshot(t), SalaryParams{Trees: 100, MaxDepth: 3, MinLeaf: 5, LearningRate: 0.1})
	require.NoError(t, err)

	for _, sen := range []model.Seniority{model.SeniorityEntry, model.SeniorityMid, model.SenioritySenior} {
		key := model.ArchetypeKey{CompanyID: co.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: sen}
		got := est.Estimate(key)
		assert.LessOrEqual(t, got.P10, got.P50, "seniority %s", sen)
		assert.LessOrEqual(t, got.P50, got.P90, "seniority %s", sen)
		assert.Greater(t, got.P50, 70000.0)
		assert.Less(t, got.P50, 180000.0)
	}

	// Predicted medians track the seniority gradient in the data.
	key := func(sen model.Seniority) model.ArchetypeKey {
		return model.ArchetypeKey{CompanyID: co.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: sen}
	}
	assert.Less(t, est.Estimate(key(model.SeniorityEntry)).P50, est.Estimate(key(model.SenioritySenior)).P50)
}

func TestTrainSalary_AggregateFallback(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Tiny", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(100000))
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(120000))

	// Two salaried rows cannot grow a tree; the estimator degrades to
	// the aggregate medians instead of failing.
	est, err := TrainSalary(b.snapshot(t), SalaryParams{})
	require.NoError(t, err)

	key := model.ArchetypeKey{CompanyID: co.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: model.SeniorityMid}
	got := est.Estimate(key)
	assert.Equal(t, 110000.0, got.P50)
	assert.Equal(t, 110000.0*0.8, got.P10)
	assert.Equal(t, 110000.0*1.2, got.P90)
	assert.Equal(t, map[string]float64{"fallback": 1}, est.Metrics())
}

func TestTrainSalary_NoSalariedObservations(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Opaque", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, nil)

	// A base with no salaries at all is still trainable; the estimator
	// just reports it holds nothing to estimate from.
	est, err := TrainSalary(b.snapshot(t), SalaryParams{})
	require.NoError(t, err)
	assert.False(t, est.HasData())
	assert.Equal(t, map[string]float64{"fallback": 1}, est.Metrics())
}

func TestTrainSalary_UnseenCompanyFallsBack(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	for i := 0; i < 12; i++ {
		b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(100000+float64(i)*1000))
	}
	ghost := b.addCompany(t, "Ghost", "Software")

	est, err := TrainSalary(b.snapshot(t), SalaryParams{Trees: 50})
	require.NoError(t, err)

	// A company with no observations still gets an estimate built from
	// the coarser aggregates, never a zero or an error.
	got := est.Estimate(model.ArchetypeKey{
		CompanyID: ghost.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: model.SeniorityMid,
	})
	assert.Greater(t, got.P50, 0.0)
	assert.False(t, math.IsNaN(got.P50))
}

func TestSalaryMetrics_ReportsPinballLoss(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	for i := 0; i < 15; i++ {
		b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(100000+float64(i)*2000))
	}

	est, err := TrainSalary(b.snapshot(t), SalaryParams{Trees: 50})
	require.NoError(t, err)

	m := est.Metrics()
	for _, k := range []string{"pinball_p10", "pinball_p50", "pinball_p90"} {
		v, ok := m[k]
		require.True(t, ok, k)
		assert.False(t, math.IsNaN(v), k)
		assert.GreaterOrEqual(t, v, 0.0, k)
	}
}
