// Package synth recomputes observed archetypes from the observation
// base. Synthesis is a pure aggregation: running it twice over the same
// observations produces the same archetype.
package synth

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

// Synthesizer aggregates observed jobs into archetypes.
type Synthesizer struct {
	store store.Store
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(st store.Store) *Synthesizer {
	return &Synthesizer{store: st}
}

// SynthesizeAll recomputes the archetype for every distinct key in the
// observation base. Returns the number of archetypes written.
func (s *Synthesizer) SynthesizeAll(ctx context.Context) (int, error) {
	keys, err := s.store.DistinctArchetypeKeys(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, key := range keys {
		a, err := s.Synthesize(ctx, key)
		if err != nil {
			return written, err
		}
		if a != nil {
			written++
		}
	}
	zap.L().Info("synth: pass complete", zap.Int("keys", len(keys)), zap.Int("written", written))
	return written, nil
}

// Synthesize recomputes one archetype from all non-stale observations
// behind its key and upserts it with record_type=observed. A key with
// no remaining observations produces nothing.
func (s *Synthesizer) Synthesize(ctx context.Context, key model.ArchetypeKey) (*model.Archetype, error) {
	jobs, err := s.store.ListObservedJobsForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	sources, err := s.sourceWeights(ctx)
	if err != nil {
		return nil, err
	}

	a := &model.Archetype{
		CompanyID: key.CompanyID,
		MetroID:   key.MetroID,
		RoleID:    key.RoleID,
		Seniority: key.Seniority,
		Type:      model.RecordObserved,
	}

	var salaries []float64
	evidence := make([]model.ArchetypeEvidence, 0, len(jobs))
	var totalWeight, salaryWeight float64
	for i := range jobs {
		job := &jobs[i]
		w, ok := sources[job.SourceID]
		if !ok {
			w = 0.5
		}
		totalWeight += w
		if job.Salary != nil {
			salaries = append(salaries, *job.Salary)
			salaryWeight += w
		}
		evidence = append(evidence, model.ArchetypeEvidence{ObservedJobID: &job.ID, Weight: w})
	}

	if len(salaries) > 0 {
		sort.Float64s(salaries)
		a.SalaryP25 = ptr(percentile(salaries, 0.25))
		a.SalaryP50 = ptr(percentile(salaries, 0.50))
		a.SalaryP75 = ptr(percentile(salaries, 0.75))
		mean, stddev := meanStddev(salaries)
		a.SalaryMean = &mean
		a.SalaryStddev = &stddev
	}

	// Each observation is one seat, so the observed headcount is exact:
	// all three quantiles collapse to the count.
	count := float64(len(jobs))
	a.HeadcountP10 = &count
	a.HeadcountP50 = &count
	a.HeadcountP90 = &count

	// Evidence weight saturates toward 1: one tier-A observation is
	// worth more than one tier-C, and more observations always help.
	a.ExistenceScore = saturate(totalWeight)
	a.SalaryScore = saturate(salaryWeight)
	a.HeadcountScore = saturate(totalWeight)
	a.Confidence = (a.ExistenceScore + a.SalaryScore + a.HeadcountScore) / 3

	if err := s.store.UpsertArchetype(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceEvidence(ctx, a.ID, evidence); err != nil {
		return nil, eris.Wrapf(err, "synth: evidence for archetype %d", a.ID)
	}
	return a, nil
}

func (s *Synthesizer) sourceWeights(ctx context.Context) (map[int64]float64, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	weights := make(map[int64]float64, len(sources))
	for _, src := range sources {
		weights[src.ID] = src.Weight
	}
	return weights, nil
}

func saturate(w float64) float64 {
	return w / (w + 1)
}

// percentile interpolates linearly over a sorted sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func meanStddev(vals []float64) (mean, stddev float64) {
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(vals)-1))
}

func ptr(f float64) *float64 { return &f }
