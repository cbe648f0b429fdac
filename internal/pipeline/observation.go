package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/store"
	"github.com/sells-group/labor-atlas/internal/title"
)

// Builder turns a resolved, classified raw record into an observed job.
type Builder struct {
	store store.Store
}

// NewBuilder creates an observation builder.
func NewBuilder(st store.Store) *Builder {
	return &Builder{store: st}
}

// Build upserts the observed job for a raw record. Each raw record
// produces at most one observed job; rebuilding after a correction
// updates it in place.
func (b *Builder) Build(ctx context.Context, raw *model.RawRecord, res *resolve.Resolution, cls *title.Classification) (*model.ObservedJob, error) {
	if raw.ID == 0 {
		return nil, eris.New("pipeline: raw record has no id")
	}

	observedAt := raw.IngestedAt
	if raw.ObservedAt != nil {
		observedAt = *raw.ObservedAt
	}

	job := &model.ObservedJob{
		RawRecordID:        raw.ID,
		CompanyID:          res.CompanyID,
		LocationID:         res.LocationID,
		LocationUnresolved: !res.LocationMatched && raw.RawLocation != "",
		RoleID:             cls.RoleID,
		Seniority:          cls.Seniority,
		Salary:             raw.RawSalary,
		SourceID:           raw.SourceID,
		ObservedAt:         observedAt,
	}
	if _, err := b.store.UpsertObservedJob(ctx, job); err != nil {
		return nil, eris.Wrapf(err, "pipeline: build observation for raw record %d", raw.ID)
	}
	return job, nil
}
