package infer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
	"github.com/sells-group/labor-atlas/internal/store"
)

// Config collects the tuning knobs for all three models.
type Config struct {
	Salary               SalaryParams
	Existence            ExistenceParams
	ExistenceThreshold   float64
	TemplateMinCompanies int
}

// Inferencer trains the models over a point-in-time snapshot and writes
// inferred archetypes for keys the sources never showed.
type Inferencer struct {
	store store.Store
	cfg   Config
}

// NewInferencer creates an inferencer.
func NewInferencer(st store.Store, cfg Config) *Inferencer {
	if cfg.ExistenceThreshold <= 0 {
		cfg.ExistenceThreshold = 0.5
	}
	return &Inferencer{store: st, cfg: cfg}
}

// ErrRunInProgress is returned when a training job for the same model
// is already active.
var ErrRunInProgress = eris.New("infer: training run already in progress")

// Train runs one training job for the named model and records it with
// its metrics. Only one active run per model is allowed.
func (inf *Inferencer) Train(ctx context.Context, modelName string) (*model.ModelRun, error) {
	switch modelName {
	case model.ModelSalary, model.ModelHeadcount, model.ModelExistence:
	default:
		return nil, eris.Errorf("infer: unknown model %q", modelName)
	}

	run, snapshot, err := inf.beginRun(ctx, modelName)
	if err != nil {
		return nil, err
	}

	var metrics map[string]float64
	switch modelName {
	case model.ModelSalary:
		est, err := TrainSalary(snapshot, inf.cfg.Salary)
		if err != nil {
			return nil, inf.failRun(ctx, run, err)
		}
		metrics = est.Metrics()
	case model.ModelExistence:
		roles, err := inf.store.ListRoles(ctx)
		if err != nil {
			return nil, inf.failRun(ctx, run, err)
		}
		cls, err := TrainExistence(snapshot, roles, inf.cfg.Existence)
		if err != nil {
			return nil, inf.failRun(ctx, run, err)
		}
		metrics = cls.Metrics()
	case model.ModelHeadcount:
		alloc := NewAllocator(snapshot, inf.cfg.TemplateMinCompanies)
		metrics = map[string]float64{
			"industries": float64(len(alloc.templates)),
		}
	}

	if err := inf.store.CompleteModelRun(ctx, run.ID, model.RunComplete, metrics); err != nil {
		return nil, err
	}
	run.Status = model.RunComplete
	run.Metrics = metrics
	zap.L().Info("infer: training run complete",
		zap.String("model", modelName),
		zap.String("run_id", run.ID),
		zap.Any("metrics", metrics),
	)
	return run, nil
}

// GenerateInferred trains all three models on one snapshot and writes an
// inferred archetype for every unobserved key that clears the existence
// threshold. Returns the number of archetypes written.
func (inf *Inferencer) GenerateInferred(ctx context.Context) (int, error) {
	salaryRun, snapshot, err := inf.beginRun(ctx, model.ModelSalary)
	if err != nil {
		return 0, err
	}
	headcountRun, _, err := inf.beginRun(ctx, model.ModelHeadcount)
	if err != nil {
		return 0, inf.failRun(ctx, salaryRun, err)
	}
	existenceRun, _, err := inf.beginRun(ctx, model.ModelExistence)
	if err != nil {
		inf.failRun(ctx, headcountRun, err) //nolint:errcheck
		return 0, inf.failRun(ctx, salaryRun, err)
	}
	fail := func(err error) (int, error) {
		inf.failRun(ctx, existenceRun, err) //nolint:errcheck
		inf.failRun(ctx, headcountRun, err) //nolint:errcheck
		return 0, inf.failRun(ctx, salaryRun, err)
	}

	estimator, err := TrainSalary(snapshot, inf.cfg.Salary)
	if err != nil {
		return fail(err)
	}
	roles, err := inf.store.ListRoles(ctx)
	if err != nil {
		return fail(err)
	}
	classifier, err := TrainExistence(snapshot, roles, inf.cfg.Existence)
	if err != nil {
		return fail(err)
	}
	allocator := NewAllocator(snapshot, inf.cfg.TemplateMinCompanies)

	written := 0
	for _, company := range snapshot.Companies() {
		n, err := inf.inferCompany(ctx, snapshot, company, estimator, classifier, allocator,
			salaryRun.ID, headcountRun.ID, existenceRun.ID)
		if err != nil {
			return fail(err)
		}
		written += n
	}

	for runID, metrics := range map[string]map[string]float64{
		salaryRun.ID:    estimator.Metrics(),
		headcountRun.ID: {"industries": float64(len(allocator.templates)), "written": float64(written)},
		existenceRun.ID: classifier.Metrics(),
	} {
		if err := inf.store.CompleteModelRun(ctx, runID, model.RunComplete, metrics); err != nil {
			return written, err
		}
	}

	zap.L().Info("infer: inference pass complete",
		zap.Int("archetypes_written", written),
		zap.String("salary_run", salaryRun.ID),
		zap.String("headcount_run", headcountRun.ID),
		zap.String("existence_run", existenceRun.ID),
	)
	return written, nil
}

// inferCompany writes inferred archetypes for one company's unobserved
// template roles.
func (inf *Inferencer) inferCompany(
	ctx context.Context,
	snapshot *Snapshot,
	company *model.Company,
	estimator *SalaryEstimator,
	classifier *ExistenceClassifier,
	allocator *Allocator,
	salaryRunID, headcountRunID, existenceRunID string,
) (int, error) {
	metro := snapshot.modalMetro(company.ID)
	written := 0
	for _, est := range allocator.Allocate(company.ID) {
		if est.Observed {
			continue
		}

		// Qualify seniorities for this unobserved role, then split the
		// role-level count across them by existence probability.
		type candidate struct {
			key  model.ArchetypeKey
			prob float64
		}
		var candidates []candidate
		var probSum float64
		for _, sen := range seniorityLevels {
			key := model.ArchetypeKey{CompanyID: company.ID, MetroID: metro, RoleID: est.RoleID, Seniority: sen}
			if snapshot.HasKey(key) {
				continue
			}
			prob := classifier.Predict(key)
			if prob < inf.cfg.ExistenceThreshold {
				continue
			}
			candidates = append(candidates, candidate{key: key, prob: prob})
			probSum += prob
		}

		for _, cand := range candidates {
			headcount := est.Count * cand.prob / probSum
			if err := inf.writeInferred(ctx, estimator, cand.key, cand.prob, headcount, est.Tier,
				salaryRunID, headcountRunID, existenceRunID); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func (inf *Inferencer) writeInferred(
	ctx context.Context,
	estimator *SalaryEstimator,
	key model.ArchetypeKey,
	prob, headcount float64,
	tier model.HeadcountTier,
	salaryRunID, headcountRunID, existenceRunID string,
) error {
	// Never overwrite an observed archetype with an inferred one.
	existing, err := inf.store.GetArchetypeByKey(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil && existing.Type == model.RecordObserved {
		return nil
	}

	var salP25, salP50, salP75 *float64
	salaryScore := 0.0
	if estimator.HasData() {
		sal := estimator.Estimate(key)
		// The estimator emits p10/p50/p90; the archetype stores the
		// interquartile band, recovered by interpolating the quantile
		// function between the modeled points.
		salP25 = ptrF(sal.P10 + (sal.P50-sal.P10)*0.375)
		salP50 = ptrF(sal.P50)
		salP75 = ptrF(sal.P50 + (sal.P90-sal.P50)*0.625)
		salaryScore = 0.3
	}

	band := 0.6
	if tier == model.HeadcountTemplate {
		band = 0.4
	}

	a := &model.Archetype{
		CompanyID: key.CompanyID,
		MetroID:   key.MetroID,
		RoleID:    key.RoleID,
		Seniority: key.Seniority,
		Type:      model.RecordInferred,

		SalaryP25: salP25,
		SalaryP50: salP50,
		SalaryP75: salP75,

		HeadcountP10: ptrF(headcount * (1 - band)),
		HeadcountP50: &headcount,
		HeadcountP90: ptrF(headcount * (1 + band)),

		// Inference confidence is deliberately bounded below what a
		// single direct observation earns.
		ExistenceScore:       0.6 * prob,
		SalaryScore:          salaryScore,
		HeadcountScore:       headcountScore(tier),
		ExistenceProbability: &prob,
	}
	a.Confidence = (a.ExistenceScore + a.SalaryScore + a.HeadcountScore) / 3

	if err := inf.store.UpsertArchetype(ctx, a); err != nil {
		return err
	}
	evidence := []model.ArchetypeEvidence{
		{ModelRunID: &salaryRunID, Weight: prob},
		{ModelRunID: &headcountRunID, Weight: prob},
		{ModelRunID: &existenceRunID, Weight: prob},
	}
	return inf.store.ReplaceEvidence(ctx, a.ID, evidence)
}

func headcountScore(tier model.HeadcountTier) float64 {
	switch tier {
	case model.HeadcountTemplate:
		return 0.4
	default:
		return 0.2
	}
}

// beginRun snapshots the observation base and registers an active run.
func (inf *Inferencer) beginRun(ctx context.Context, modelName string) (*model.ModelRun, *Snapshot, error) {
	active, err := inf.store.HasActiveModelRun(ctx, modelName)
	if err != nil {
		return nil, nil, err
	}
	if active {
		return nil, nil, eris.Wrapf(ErrRunInProgress, "model %s", modelName)
	}

	snapshot, err := NewSnapshot(ctx, inf.store)
	if err != nil {
		return nil, nil, err
	}

	run := &model.ModelRun{
		ID:         uuid.New().String(),
		Model:      modelName,
		Status:     model.RunRunning,
		SnapshotAt: time.Now().UTC(),
	}
	if err := inf.store.CreateModelRun(ctx, run); err != nil {
		return nil, nil, err
	}
	return run, snapshot, nil
}

// failRun marks the run failed and returns the original error wrapped.
func (inf *Inferencer) failRun(ctx context.Context, run *model.ModelRun, cause error) error {
	if err := inf.store.CompleteModelRun(ctx, run.ID, model.RunFailed, nil); err != nil {
		zap.L().Error("infer: failed to mark run failed",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	return eris.Wrapf(cause, "infer: run %s failed", run.ID)
}

func ptrF(f float64) *float64 { return &f }
