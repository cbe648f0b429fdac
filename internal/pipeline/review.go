package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/resolve"
	"github.com/sells-group/labor-atlas/internal/title"
)

// ResolveReview applies a human correction to a queued record and
// resumes its ingestion: the corrected role and seniority are taken as
// fully confident and the observation is built immediately.
func (in *Ingestor) ResolveReview(ctx context.Context, itemID int64, res model.ReviewResolution) (*model.ObservedJob, error) {
	if !res.Seniority.Valid() {
		return nil, eris.Errorf("pipeline: unknown seniority %q", res.Seniority)
	}

	item, err := in.store.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, eris.Errorf("pipeline: review item %d not found", itemID)
	}

	rec, err := in.store.GetRawRecord(ctx, item.RawRecordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, eris.Errorf("pipeline: raw record %d behind review item %d is missing", item.RawRecordID, itemID)
	}

	if err := in.store.ResolveReview(ctx, itemID, res); err != nil {
		return nil, err
	}
	if err := in.store.AppendAudit(ctx, &model.AuditEntry{
		Entity:   "review_queue",
		EntityID: itemID,
		Action:   "resolve",
		Detail:   fmt.Sprintf("role %d, seniority %s for raw record %d", res.RoleID, res.Seniority, rec.ID),
	}); err != nil {
		return nil, err
	}

	resolution, err := in.resolver.Resolve(ctx, rec.RawCompany, rec.RawLocation)
	if err != nil {
		if eris.Is(err, resolve.ErrEmptyCompany) {
			zap.L().Warn("pipeline: reviewed record has no resolvable company",
				zap.Int64("raw_record_id", rec.ID),
			)
			return nil, nil
		}
		return nil, err
	}

	cls := title.Classification{
		RoleID:              res.RoleID,
		RoleConfidence:      1,
		RoleMatched:         true,
		Seniority:           res.Seniority,
		SeniorityConfidence: 1,
	}
	job, err := in.builder.Build(ctx, rec, resolution, &cls)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: review resolved",
		zap.Int64("review_id", itemID),
		zap.Int64("raw_record_id", rec.ID),
		zap.Int64("role_id", res.RoleID),
		zap.String("seniority", string(res.Seniority)),
	)
	return job, nil
}
