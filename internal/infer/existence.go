package infer

import (
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/labor-atlas/internal/model"
)

// ExistenceParams tunes the archetype-existence classifier.
type ExistenceParams struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	// NegativeRatio is the number of sampled negatives per positive.
	NegativeRatio float64
	// StratifyBySize weights negative sampling by each company's
	// observed headcount instead of sampling companies uniformly.
	StratifyBySize bool
	Seed           int64
}

// seniorityLevels is the sampling space for negative generation.
var seniorityLevels = []model.Seniority{
	model.SeniorityIntern, model.SeniorityEntry, model.SeniorityMid,
	model.SenioritySenior, model.SeniorityLead, model.SeniorityManager,
	model.SeniorityDirector, model.SeniorityExec,
}

// ExistenceClassifier predicts how likely a company employs a role at a
// seniority that no source has shown. Positives are the observed keys;
// negatives are uniformly sampled unobserved combinations. Raw scores
// pass through a histogram calibration so the output probability
// tracks empirical frequency.
type ExistenceClassifier struct {
	snapshot *Snapshot
	gbt      *GBT
	bins     []calibrationBin
	baseRate float64
}

type calibrationBin struct {
	total     float64
	positives float64
}

const calibrationBins = 10

// TrainExistence fits the classifier on the snapshot. roles is the full
// role taxonomy, which defines the negative sampling space alongside
// the snapshot's companies.
func TrainExistence(snapshot *Snapshot, roles []model.CanonicalRole, params ExistenceParams) (*ExistenceClassifier, error) {
	positives := snapshot.Keys()
	companies := snapshot.Companies()
	if len(positives) == 0 || len(companies) == 0 || len(roles) == 0 {
		return nil, eris.Wrap(ErrInsufficientData, "infer: existence training set")
	}
	if params.NegativeRatio <= 0 {
		params.NegativeRatio = 2
	}

	var X [][]float64
	var y []float64
	for _, key := range positives {
		X = append(X, snapshot.Features(key))
		y = append(y, 1)
	}

	rng := rand.New(rand.NewSource(params.Seed))
	pickCompany := func() *model.Company {
		return companies[rng.Intn(len(companies))]
	}
	if params.StratifyBySize {
		cum := make([]int, len(companies))
		total := 0
		for i, c := range companies {
			n := snapshot.companyObserved[c.ID]
			if n < 1 {
				n = 1
			}
			total += n
			cum[i] = total
		}
		pickCompany = func() *model.Company {
			return companies[sort.SearchInts(cum, rng.Intn(total)+1)]
		}
	}

	want := int(params.NegativeRatio * float64(len(positives)))
	attempts := 0
	for n := 0; n < want && attempts < want*20; attempts++ {
		company := pickCompany()
		key := model.ArchetypeKey{
			CompanyID: company.ID,
			MetroID:   snapshot.modalMetro(company.ID),
			RoleID:    roles[rng.Intn(len(roles))].ID,
			Seniority: seniorityLevels[rng.Intn(len(seniorityLevels))],
		}
		if snapshot.HasKey(key) {
			continue
		}
		X = append(X, snapshot.Features(key))
		y = append(y, 0)
		n++
	}

	gbt, err := TrainGBT(X, y, GBTParams{
		Trees:        params.Trees,
		MaxDepth:     params.MaxDepth,
		MinLeaf:      params.MinLeaf,
		LearningRate: params.LearningRate,
		Loss:         LossLogistic,
	})
	if err != nil {
		return nil, err
	}

	c := &ExistenceClassifier{
		snapshot: snapshot,
		gbt:      gbt,
		bins:     make([]calibrationBin, calibrationBins),
		baseRate: float64(len(positives)) / float64(len(y)),
	}
	for i := range X {
		bin := &c.bins[binIndex(gbt.PredictProb(X[i]))]
		bin.total++
		bin.positives += y[i]
	}
	return c, nil
}

// Predict returns the calibrated probability that the key exists.
func (c *ExistenceClassifier) Predict(key model.ArchetypeKey) float64 {
	raw := c.gbt.PredictProb(c.snapshot.Features(key))
	bin := c.bins[binIndex(raw)]
	if bin.total < 5 {
		// Bin too thin to trust its empirical rate.
		return raw
	}
	return bin.positives / bin.total
}

// Metrics reports the training brier score and sample base rate for
// the model-run record.
func (c *ExistenceClassifier) Metrics() map[string]float64 {
	var brier, n float64
	for key := range c.snapshot.keys {
		p := c.Predict(key.key())
		brier += (1 - p) * (1 - p)
		n++
	}
	if n > 0 {
		brier /= n
	}
	return map[string]float64{
		"brier_positives": brier,
		"base_rate":       c.baseRate,
	}
}

func binIndex(p float64) int {
	i := int(p * calibrationBins)
	if i >= calibrationBins {
		i = calibrationBins - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// modalMetro is the metro a company's observations most often land in,
// nil when none resolve.
func (s *Snapshot) modalMetro(companyID int64) *int64 {
	counts := make(map[int64]int)
	for i := range s.Jobs {
		job := &s.Jobs[i]
		if job.CompanyID != companyID {
			continue
		}
		if m := s.metroID(job); m != nil {
			counts[*m]++
		}
	}
	var best *int64
	bestN := 0
	for metro, n := range counts {
		// Ties go to the smaller metro id so repeated runs pick the
		// same one regardless of map iteration order.
		if n > bestN || (n == bestN && best != nil && metro < *best) {
			m := metro
			best = &m
			bestN = n
		}
	}
	return best
}
