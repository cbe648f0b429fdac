package infer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func trainedClassifier(t *testing.T, b *base, params ExistenceParams) *ExistenceClassifier {
	t.Helper()
	roles, err := b.st.ListRoles(context.Background())
	require.NoError(t, err)
	c, err := TrainExistence(b.snapshot(t), roles, params)
	require.NoError(t, err)
	return c
}

func TestTrainExistence_ProbabilitiesBounded(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)

	c := trainedClassifier(t, b, ExistenceParams{Trees: 50, MaxDepth: 3, MinLeaf: 3, LearningRate: 0.1, Seed: 7})

	for _, co := range b.snapshot(t).Companies() {
		for _, role := range b.roles {
			for _, sen := range seniorityLevels {
				p := c.Predict(model.ArchetypeKey{CompanyID: co.ID, RoleID: role.ID, Seniority: sen})
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
		}
	}
}

func TestTrainExistence_StratifiedSampling(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)

	c := trainedClassifier(t, b, ExistenceParams{
		Trees: 50, MaxDepth: 3, MinLeaf: 3, LearningRate: 0.1,
		StratifyBySize: true, Seed: 7,
	})

	for _, co := range b.snapshot(t).Companies() {
		for _, role := range b.roles {
			p := c.Predict(model.ArchetypeKey{CompanyID: co.ID, RoleID: role.ID, Seniority: model.SeniorityMid})
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

func TestTrainExistence_ObservedKeysScoreAboveBaseRate(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)
	snapshot := b.snapshot(t)

	c := trainedClassifier(t, b, ExistenceParams{Trees: 100, MaxDepth: 3, MinLeaf: 3, LearningRate: 0.1, Seed: 7})

	var total float64
	keys := snapshot.Keys()
	for _, key := range keys {
		total += c.Predict(key)
	}
	mean := total / float64(len(keys))
	assert.Greater(t, mean, c.baseRate)
}

func TestTrainExistence_CalibrationTracksLabels(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)

	c := trainedClassifier(t, b, ExistenceParams{Trees: 30, MaxDepth: 3, MinLeaf: 3, LearningRate: 0.05, Seed: 7})

	// Every well-populated calibration bin reports an empirical rate,
	// so its output is a frequency by construction.
	for i, bin := range c.bins {
		if bin.total < 5 {
			continue
		}
		rate := bin.positives / bin.total
		assert.GreaterOrEqual(t, rate, 0.0, "bin %d", i)
		assert.LessOrEqual(t, rate, 1.0, "bin %d", i)
	}

	m := c.Metrics()
	assert.InDelta(t, 1.0/3.0, m["base_rate"], 0.05)
	assert.GreaterOrEqual(t, m["brier_positives"], 0.0)
	assert.LessOrEqual(t, m["brier_positives"], 1.0)
}

func TestTrainExistence_EmptySnapshot(t *testing.T) {
	b := newBase(t)

	roles, err := b.st.ListRoles(context.Background())
	require.NoError(t, err)
	_, err = TrainExistence(b.snapshot(t), roles, ExistenceParams{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientData))
}

func TestBinIndex_Bounds(t *testing.T) {
	assert.Equal(t, 0, binIndex(0))
	assert.Equal(t, 0, binIndex(0.05))
	assert.Equal(t, 5, binIndex(0.55))
	assert.Equal(t, calibrationBins-1, binIndex(1))
	assert.Equal(t, calibrationBins-1, binIndex(1.2))
}

func TestModalMetro(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	ctx := context.Background()

	metro := model.MetroArea{Name: "Denver-Aurora"}
	require.NoError(t, b.st.UpsertMetro(ctx, &metro))
	loc := model.Location{City: "Denver", State: "CO", MetroID: &metro.ID}
	require.NoError(t, b.st.UpsertLocation(ctx, &loc))

	j1 := b.addJob(t, co, "Software Engineer", model.SeniorityMid, nil)
	j2 := b.addJob(t, co, "Software Engineer", model.SenioritySenior, nil)
	for _, j := range []model.ObservedJob{j1, j2} {
		j.LocationID = &loc.ID
		_, err := b.st.UpsertObservedJob(ctx, &j)
		require.NoError(t, err)
	}

	got := b.snapshot(t).modalMetro(co.ID)
	require.NotNil(t, got)
	assert.Equal(t, metro.ID, *got)

	ghost := b.addCompany(t, "Ghost", "Software")
	assert.Nil(t, b.snapshot(t).modalMetro(ghost.ID))
}

func TestTrainExistence_NegativeRatioDefault(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)

	c := trainedClassifier(t, b, ExistenceParams{Trees: 20, MaxDepth: 3, MinLeaf: 3, Seed: 7})
	// Default ratio is two negatives per positive.
	assert.InDelta(t, 1.0/3.0, c.baseRate, 0.05)
}
