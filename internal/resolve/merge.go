package resolve

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// MergeStore is the persistence surface for company merges.
type MergeStore interface {
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	RepointCompanyRefs(ctx context.Context, fromID, toID int64) error
	DeleteArchetypesForCompany(ctx context.Context, companyID int64) ([]model.ArchetypeKey, error)
	DeleteCompany(ctx context.Context, id int64) error
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
}

// MergeCompanies collapses a duplicate company into a survivor: aliases
// and observed jobs are re-pointed, the duplicate's archetypes are
// removed, and the duplicate row is deleted. Returns the archetype keys
// that must be re-synthesized (the duplicate's former keys re-keyed to
// the survivor). An audit entry records the merge, since this mutates
// derived state outside normal ingestion.
func MergeCompanies(ctx context.Context, store MergeStore, survivorID, duplicateID int64) ([]model.ArchetypeKey, error) {
	if survivorID == duplicateID {
		return nil, eris.New("merge: survivor and duplicate are the same company")
	}

	survivor, err := store.GetCompany(ctx, survivorID)
	if err != nil {
		return nil, eris.Wrap(err, "merge: load survivor")
	}
	if survivor == nil {
		return nil, eris.Errorf("merge: survivor company %d not found", survivorID)
	}
	duplicate, err := store.GetCompany(ctx, duplicateID)
	if err != nil {
		return nil, eris.Wrap(err, "merge: load duplicate")
	}
	if duplicate == nil {
		return nil, eris.Errorf("merge: duplicate company %d not found", duplicateID)
	}

	// Drop the duplicate's archetypes first; they will be recomputed
	// under the survivor's key from the re-pointed observations.
	staleKeys, err := store.DeleteArchetypesForCompany(ctx, duplicateID)
	if err != nil {
		return nil, eris.Wrap(err, "merge: delete duplicate archetypes")
	}

	if err := store.RepointCompanyRefs(ctx, duplicateID, survivorID); err != nil {
		return nil, eris.Wrap(err, "merge: repoint references")
	}

	if err := store.DeleteCompany(ctx, duplicateID); err != nil {
		return nil, eris.Wrap(err, "merge: delete duplicate company")
	}

	if err := store.AppendAudit(ctx, &model.AuditEntry{
		Entity:   "company",
		EntityID: survivorID,
		Action:   "merge",
		Detail:   fmt.Sprintf("merged company %d (%s) into %d (%s)", duplicateID, duplicate.Name, survivorID, survivor.Name),
	}); err != nil {
		return nil, eris.Wrap(err, "merge: audit")
	}

	// Re-key the stale archetype keys to the survivor for resynthesis.
	resynth := make([]model.ArchetypeKey, 0, len(staleKeys))
	for _, k := range staleKeys {
		k.CompanyID = survivorID
		resynth = append(resynth, k)
	}

	zap.L().Info("merge: companies merged",
		zap.Int64("survivor_id", survivorID),
		zap.Int64("duplicate_id", duplicateID),
		zap.Int("archetype_keys_to_resynthesize", len(resynth)),
	)
	return resynth, nil
}
