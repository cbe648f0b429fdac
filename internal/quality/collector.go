// Package quality reports on pipeline health: coverage of the archetype
// base, honesty of inferred records, and the state of the review queue.
package quality

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

// Violation flags one archetype that breaks a provenance invariant.
type Violation struct {
	ArchetypeID int64  `json:"archetype_id"`
	Problem     string `json:"problem"`
}

// Report is a point-in-time quality snapshot.
type Report struct {
	Counts store.QualityCounts `json:"counts"`

	// Coverage is the observed share of the archetype base.
	Coverage float64 `json:"coverage"`
	// ResolutionRate is the share of raw records that yielded an
	// observed job.
	ResolutionRate float64 `json:"resolution_rate"`

	Violations []Violation `json:"violations,omitempty"`
}

// Collector assembles quality reports from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

const scanPageSize = 500

// Collect builds a quality report. The violation scan walks every
// archetype and its evidence, so it is a batch operation, not a health
// probe.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	counts, err := c.store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{Counts: *counts}
	if counts.Archetypes > 0 {
		r.Coverage = float64(counts.ObservedArchetypes) / float64(counts.Archetypes)
	}
	if counts.RawRecords > 0 {
		r.ResolutionRate = float64(counts.ObservedJobs) / float64(counts.RawRecords)
	}

	if err := c.scanViolations(ctx, r); err != nil {
		return nil, err
	}

	zap.L().Info("quality: report collected",
		zap.Int64("archetypes", counts.Archetypes),
		zap.Float64("coverage", r.Coverage),
		zap.Int("violations", len(r.Violations)),
	)
	return r, nil
}

// scanViolations checks every archetype against the provenance rules:
// observed records cite at least one observed job, inferred records
// carry a probability, model-run evidence, and confidence below every
// observed record.
func (c *Collector) scanViolations(ctx context.Context, r *Report) error {
	minObserved := 2.0
	var inferred []model.Archetype

	for offset := 0; ; offset += scanPageSize {
		page, err := c.store.QueryArchetypes(ctx, store.ArchetypeFilter{Limit: scanPageSize, Offset: offset})
		if err != nil {
			return err
		}
		for _, a := range page {
			switch a.Type {
			case model.RecordObserved:
				if a.Confidence < minObserved {
					minObserved = a.Confidence
				}
				ok, err := c.hasEvidence(ctx, a.ID, func(e model.ArchetypeEvidence) bool {
					return e.ObservedJobID != nil
				})
				if err != nil {
					return err
				}
				if !ok {
					r.Violations = append(r.Violations, Violation{
						ArchetypeID: a.ID,
						Problem:     "observed archetype without observed-job evidence",
					})
				}
			case model.RecordInferred:
				inferred = append(inferred, a)
			default:
				r.Violations = append(r.Violations, Violation{
					ArchetypeID: a.ID,
					Problem:     fmt.Sprintf("unknown record type %q", a.Type),
				})
			}
		}
		if len(page) < scanPageSize {
			break
		}
	}

	for _, a := range inferred {
		if a.ExistenceProbability == nil {
			r.Violations = append(r.Violations, Violation{
				ArchetypeID: a.ID,
				Problem:     "inferred archetype without existence probability",
			})
		}
		if minObserved <= 1 && a.Confidence >= minObserved {
			r.Violations = append(r.Violations, Violation{
				ArchetypeID: a.ID,
				Problem:     "inferred archetype at observed-level confidence",
			})
		}
		ok, err := c.hasEvidence(ctx, a.ID, func(e model.ArchetypeEvidence) bool {
			return e.ModelRunID != nil
		})
		if err != nil {
			return err
		}
		if !ok {
			r.Violations = append(r.Violations, Violation{
				ArchetypeID: a.ID,
				Problem:     "inferred archetype without model-run evidence",
			})
		}
	}
	return nil
}

func (c *Collector) hasEvidence(ctx context.Context, archetypeID int64, match func(model.ArchetypeEvidence) bool) (bool, error) {
	ev, err := c.store.ListEvidence(ctx, archetypeID)
	if err != nil {
		return false, err
	}
	for _, e := range ev {
		if match(e) {
			return true, nil
		}
	}
	return false, nil
}
