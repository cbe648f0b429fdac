package infer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/labor-atlas/internal/model"
)

func TestAllocate_ObservedCountsPassThrough(t *testing.T) {
	b := newBase(t)
	co := b.addCompany(t, "Solo", "Software")
	b.addJob(t, co, "Software Engineer", model.SeniorityMid, nil)
	b.addJob(t, co, "Software Engineer", model.SenioritySenior, nil)
	b.addJob(t, co, "Sales Representative", model.SeniorityMid, nil)

	alloc := NewAllocator(b.snapshot(t), 3)
	got := alloc.Allocate(co.ID)
	require.Len(t, got, 2)

	byRole := make(map[int64]HeadcountEstimate)
	for _, e := range got {
		byRole[e.RoleID] = e
	}
	eng := byRole[b.roles["Software Engineer"].ID]
	assert.Equal(t, 2.0, eng.Count)
	assert.Equal(t, model.HeadcountObserved, eng.Tier)
	assert.True(t, eng.Observed)
	assert.Equal(t, 1.0, byRole[b.roles["Sales Representative"].ID].Count)
}

func TestAllocate_TemplateExtrapolation(t *testing.T) {
	b := newBase(t)
	target := seedIndustry(t, b)

	alloc := NewAllocator(b.snapshot(t), 3)
	got := alloc.Allocate(target.ID)

	byRole := make(map[int64]HeadcountEstimate)
	for _, e := range got {
		byRole[e.RoleID] = e
	}

	// Engineering is observed directly: two people, exact.
	eng := byRole[b.roles["Software Engineer"].ID]
	assert.True(t, eng.Observed)
	assert.Equal(t, 2.0, eng.Count)

	// The peers put half their workforce in engineering, so two
	// observed engineers imply a workforce of four. Each missing role
	// holds a quarter share: one person apiece.
	sales := byRole[b.roles["Sales Representative"].ID]
	require.False(t, sales.Observed)
	assert.InDelta(t, 1.0, sales.Count, 1e-9)
	assert.Equal(t, model.HeadcountTemplate, sales.Tier)

	support := byRole[b.roles["Customer Support"].ID]
	require.False(t, support.Observed)
	assert.InDelta(t, 1.0, support.Count, 1e-9)
}

func TestAllocate_SparseTemplateTier(t *testing.T) {
	b := newBase(t)
	target := seedIndustry(t, b)

	// Raising the peer-count bar past what the snapshot holds demotes
	// template figures to the low tier.
	alloc := NewAllocator(b.snapshot(t), 50)
	got := alloc.Allocate(target.ID)

	for _, e := range got {
		if e.Observed {
			continue
		}
		assert.Equal(t, model.HeadcountSparse, e.Tier)
	}
}

func TestAllocate_NoIndustryUsesGlobalFallback(t *testing.T) {
	b := newBase(t)
	seedIndustry(t, b)
	loner := b.addCompany(t, "Loner", "")
	b.addJob(t, loner, "Software Engineer", model.SeniorityMid, nil)

	alloc := NewAllocator(b.snapshot(t), 3)
	got := alloc.Allocate(loner.ID)

	// Without an industry the cross-company template fills in the
	// missing roles, always at the low tier. The global engineering
	// median is 0.5, so one observed engineer implies a workforce of
	// two with a quarter share apiece for sales and support.
	require.Len(t, got, 3)
	byRole := make(map[int64]HeadcountEstimate)
	for _, e := range got {
		byRole[e.RoleID] = e
	}
	assert.True(t, byRole[b.roles["Software Engineer"].ID].Observed)
	for _, name := range []string{"Sales Representative", "Customer Support"} {
		e := byRole[b.roles[name].ID]
		require.False(t, e.Observed)
		assert.InDelta(t, 0.5, e.Count, 1e-9)
		assert.Equal(t, model.HeadcountSparse, e.Tier)
	}
}

func TestAllocate_TinyShareStaysNonzero(t *testing.T) {
	b := newBase(t)
	// Peers with a 90/10 split and a target showing only the dominant
	// role at low volume. The minority share works out to well under
	// half a person but still comes back as a fractional estimate.
	for i := 0; i < 3; i++ {
		co := b.addCompany(t, fmt.Sprintf("Retail Peer %d", i), "Retail")
		for j := 0; j < 9; j++ {
			b.addJob(t, co, "Sales Representative", model.SeniorityMid, nil)
		}
		b.addJob(t, co, "Customer Support", model.SeniorityEntry, nil)
	}
	target := b.addCompany(t, "Corner Shop", "Retail")
	b.addJob(t, target, "Sales Representative", model.SeniorityMid, nil)

	alloc := NewAllocator(b.snapshot(t), 3)
	got := alloc.Allocate(target.ID)

	// One observed seller implies a total of 1/0.9, leaving about a
	// ninth of a person for support.
	require.Len(t, got, 2)
	byRole := make(map[int64]HeadcountEstimate)
	for _, e := range got {
		byRole[e.RoleID] = e
	}
	support := byRole[b.roles["Customer Support"].ID]
	require.False(t, support.Observed)
	assert.Greater(t, support.Count, 0.0)
	assert.InDelta(t, 1.0/0.9*0.1, support.Count, 1e-9)
}
