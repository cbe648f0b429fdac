package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func TestSnapshot_HasKeyAndKeys(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, nil)
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, nil)
	b.addJob(t, co, "Sales Representative", model.SenioritySenior, nil)

	s := b.snapshot(t)
	keys := s.Keys()
	require.Len(t, keys, 2)

	eng := model.ArchetypeKey{CompanyID: co.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: model.SeniorityMid}
	assert.True(t, s.HasKey(eng))
	eng.Seniority = model.SeniorityExec
	assert.False(t, s.HasKey(eng))
}

func TestSnapshot_CompanyMedianFallbackChain(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(100000))
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(120000))
	b.addJob(t, co, "Sales Representative", model.SeniorityMid, fl(80000))
	ghost := b.addCompany(t, "Ghost", "Software")

	s := b.snapshot(t)
	engID := b.roles["Software Engineer"].ID

	// Direct company median when the company has salaried observations.
	assert.Equal(t, 100000.0, s.CompanyMedian(co.ID, nil, engID))

	// Unseen company falls back to the role median.
	assert.Equal(t, 110000.0, s.CompanyMedian(ghost.ID, nil, engID))

	// Unseen company and role fall all the way to the global median.
	assert.Equal(t, 100000.0, s.CompanyMedian(ghost.ID, nil, 9999))
}

func TestSnapshot_FeaturesShape(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Acme", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, fl(100000))

	s := b.snapshot(t)
	key := model.ArchetypeKey{CompanyID: co.ID, RoleID: b.roles["Software Engineer"].ID, Seniority: model.SenioritySenior}

	x := s.Features(key)
	require.Len(t, x, featureDim)
	assert.Equal(t, float64(model.SenioritySenior.Rank()), x[0])
	assert.Equal(t, 0.0, x[6], "no metro on the key")

	metro := int64(3)
	key.MetroID = &metro
	x = s.Features(key)
	assert.Equal(t, 1.0, x[6])
}

func TestSnapshot_KeysOrderedByMetro(t *testing.T) {
	metroA, metroB := int64(2), int64(9)
	s := &Snapshot{keys: make(map[flatKey]bool)}
	for _, k := range []model.ArchetypeKey{
		{CompanyID: 1, MetroID: &metroB, RoleID: 4, Seniority: model.SeniorityMid},
		{CompanyID: 1, MetroID: &metroA, RoleID: 4, Seniority: model.SenioritySenior},
		{CompanyID: 1, RoleID: 4, Seniority: model.SeniorityMid},
		{CompanyID: 1, MetroID: &metroA, RoleID: 4, Seniority: model.SeniorityMid},
	} {
		s.keys[flatten(k)] = true
	}

	// Keys differing only in metro have a fixed order: nil metro first,
	// then ascending by metro id, seniority breaking the final tie.
	got := s.Keys()
	require.Len(t, got, 4)
	assert.Nil(t, got[0].MetroID)
	require.NotNil(t, got[1].MetroID)
	assert.Equal(t, metroA, *got[1].MetroID)
	assert.Equal(t, model.SeniorityMid, got[1].Seniority)
	require.NotNil(t, got[2].MetroID)
	assert.Equal(t, metroA, *got[2].MetroID)
	assert.Equal(t, model.SenioritySenior, got[2].Seniority)
	require.NotNil(t, got[3].MetroID)
	assert.Equal(t, metroB, *got[3].MetroID)
}

func TestFlatKey_RoundTrip(t *testing.T) {
	metro := int64(7)
	key := model.ArchetypeKey{CompanyID: 1, MetroID: &metro, RoleID: 2, Seniority: model.SeniorityLead}
	back := flatten(key).key()
	require.NotNil(t, back.MetroID)
	assert.Equal(t, key.CompanyID, back.CompanyID)
	assert.Equal(t, *key.MetroID, *back.MetroID)

	key.MetroID = nil
	assert.Nil(t, flatten(key).key().MetroID)
}
