package infer

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labor-atlas/internal/model"
)

// SalaryParams tunes the quantile ensembles behind the estimator.
type SalaryParams struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
}

// SalaryEstimate is a three-point salary distribution in annual USD.
type SalaryEstimate struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// SalaryEstimator predicts salary quantiles for an archetype key. Three
// ensembles share one feature space, one per quantile; the aggregate
// fallback chain in the features keeps unseen categories estimable.
type SalaryEstimator struct {
	snapshot *Snapshot
	p10      *GBT
	p50      *GBT
	p90      *GBT
	samples  int
}

// HasData reports whether any salaried observation backed the training
// run. Without one, even the aggregate fallback has nothing to anchor
// on and callers should leave salary fields empty.
func (e *SalaryEstimator) HasData() bool { return e.samples > 0 }

// TrainSalary fits the estimator on every salaried observation in the
// snapshot. With too little data the estimator still works: it degrades
// to the snapshot's aggregate medians, and with no salaries at all it
// reports HasData false so callers can skip salary output.
func TrainSalary(snapshot *Snapshot, params SalaryParams) (*SalaryEstimator, error) {
	est := &SalaryEstimator{snapshot: snapshot}

	var X [][]float64
	var y []float64
	for i := range snapshot.Jobs {
		job := &snapshot.Jobs[i]
		if job.Salary == nil {
			continue
		}
		X = append(X, snapshot.Features(snapshot.jobKey(job)))
		y = append(y, *job.Salary)
	}
	est.samples = len(y)
	if len(y) == 0 {
		zap.L().Warn("infer: no salaried observations, salary estimation disabled for this run")
		return est, nil
	}

	gbtParams := func(alpha float64) GBTParams {
		return GBTParams{
			Trees:        params.Trees,
			MaxDepth:     params.MaxDepth,
			MinLeaf:      params.MinLeaf,
			LearningRate: params.LearningRate,
			Loss:         LossQuantile,
			Alpha:        alpha,
		}
	}

	var err error
	if est.p10, err = TrainGBT(X, y, gbtParams(0.1)); err != nil {
		if !eris.Is(err, ErrInsufficientData) {
			return nil, err
		}
		zap.L().Warn("infer: salary sample too small for quantile trees, using aggregates",
			zap.Int("samples", len(y)),
		)
		return est, nil
	}
	if est.p50, err = TrainGBT(X, y, gbtParams(0.5)); err != nil {
		return nil, err
	}
	if est.p90, err = TrainGBT(X, y, gbtParams(0.9)); err != nil {
		return nil, err
	}
	return est, nil
}

// Estimate predicts the salary distribution for a key. Quantiles are
// clamped into monotonic order; the p10 never exceeds the p50 and the
// p50 never exceeds the p90 regardless of what the ensembles emit.
func (e *SalaryEstimator) Estimate(key model.ArchetypeKey) SalaryEstimate {
	if e.p10 == nil {
		return e.aggregateEstimate(key)
	}

	x := e.snapshot.Features(key)
	p10 := e.p10.Predict(x)
	p50 := e.p50.Predict(x)
	p90 := e.p90.Predict(x)

	p50 = math.Max(p50, p10)
	p90 = math.Max(p90, p50)
	p10 = math.Min(p10, p50)
	return SalaryEstimate{P10: p10, P50: p50, P90: p90}
}

// aggregateEstimate is the no-model fallback: the coarse median with a
// fixed ±20% band.
func (e *SalaryEstimator) aggregateEstimate(key model.ArchetypeKey) SalaryEstimate {
	med := e.snapshot.CompanyMedian(key.CompanyID, key.MetroID, key.RoleID)
	return SalaryEstimate{P10: med * 0.8, P50: med, P90: med * 1.2}
}

// PinballLoss evaluates the trained p50 ensemble on its own training
// snapshot, reported as a run metric.
func (e *SalaryEstimator) PinballLoss(alpha float64, g *GBT) float64 {
	if g == nil {
		return math.NaN()
	}
	var total float64
	var n int
	for i := range e.snapshot.Jobs {
		job := &e.snapshot.Jobs[i]
		if job.Salary == nil {
			continue
		}
		pred := g.Predict(e.snapshot.Features(e.snapshot.jobKey(job)))
		d := *job.Salary - pred
		if d >= 0 {
			total += alpha * d
		} else {
			total += (alpha - 1) * d
		}
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}

// Metrics summarizes training quality for the model-run record.
func (e *SalaryEstimator) Metrics() map[string]float64 {
	if e.p10 == nil {
		return map[string]float64{"fallback": 1}
	}
	return map[string]float64{
		"pinball_p10": e.PinballLoss(0.1, e.p10),
		"pinball_p50": e.PinballLoss(0.5, e.p50),
		"pinball_p90": e.PinballLoss(0.9, e.p90),
	}
}
