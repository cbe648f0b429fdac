// Package infer holds the three offline models: the salary estimator,
// the headcount allocator, and the archetype-existence classifier. The
// tree ensemble underneath is intentionally small and dependency-free;
// it fits tabular aggregates, not embeddings.
package infer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// LossKind selects the objective a boosted ensemble optimizes.
type LossKind int

const (
	// LossSquared fits the conditional mean.
	LossSquared LossKind = iota
	// LossQuantile fits the conditional quantile at Alpha.
	LossQuantile
	// LossLogistic fits log-odds for binary labels in {0,1}.
	LossLogistic
)

// GBTParams configures a boosted ensemble.
type GBTParams struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Loss         LossKind
	// Alpha is the target quantile for LossQuantile, e.g. 0.1 for p10.
	Alpha float64
}

func (p *GBTParams) defaults() {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 4
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 5
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.05
	}
}

// GBT is a gradient-boosted ensemble of regression trees.
type GBT struct {
	params GBTParams
	base   float64
	trees  []*tree
}

type tree struct {
	nodes []node
}

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// ErrInsufficientData is returned when a training set is too small to
// grow even a single split.
var ErrInsufficientData = eris.New("infer: insufficient training data")

// TrainGBT fits an ensemble on rows X with targets y.
func TrainGBT(X [][]float64, y []float64, params GBTParams) (*GBT, error) {
	params.defaults()
	if len(X) == 0 || len(X) != len(y) {
		return nil, ErrInsufficientData
	}
	if len(X) < 2*params.MinLeaf {
		return nil, ErrInsufficientData
	}

	g := &GBT{params: params, base: baseScore(y, params)}

	scores := make([]float64, len(y))
	for i := range scores {
		scores[i] = g.base
	}

	grad := make([]float64, len(y))
	idx := make([]int, len(y))
	for t := 0; t < params.Trees; t++ {
		for i := range y {
			grad[i] = negGradient(y[i], scores[i], params)
			idx[i] = i
		}
		tr := growTree(X, y, scores, grad, idx, params)
		g.trees = append(g.trees, tr)
		for i := range y {
			scores[i] += params.LearningRate * tr.predict(X[i])
		}
	}
	return g, nil
}

// Predict returns the raw ensemble score: the mean for LossSquared, the
// quantile for LossQuantile, log-odds for LossLogistic.
func (g *GBT) Predict(x []float64) float64 {
	s := g.base
	for _, tr := range g.trees {
		s += g.params.LearningRate * tr.predict(x)
	}
	return s
}

// PredictProb maps a logistic ensemble's score through the sigmoid.
func (g *GBT) PredictProb(x []float64) float64 {
	return sigmoid(g.Predict(x))
}

func baseScore(y []float64, params GBTParams) float64 {
	switch params.Loss {
	case LossQuantile:
		sorted := append([]float64(nil), y...)
		sort.Float64s(sorted)
		return quantileSorted(sorted, params.Alpha)
	case LossLogistic:
		var pos float64
		for _, v := range y {
			pos += v
		}
		p := clamp(pos/float64(len(y)), 1e-6, 1-1e-6)
		return math.Log(p / (1 - p))
	default:
		var sum float64
		for _, v := range y {
			sum += v
		}
		return sum / float64(len(y))
	}
}

func negGradient(y, score float64, params GBTParams) float64 {
	switch params.Loss {
	case LossQuantile:
		if y > score {
			return params.Alpha
		}
		return params.Alpha - 1
	case LossLogistic:
		return y - sigmoid(score)
	default:
		return y - score
	}
}

// growTree fits one regression tree to the negative gradients using
// squared-error splits, then rewrites leaf values per the loss. For
// squared loss the mean gradient set during build is already optimal.
func growTree(X [][]float64, y, scores, grad []float64, idx []int, params GBTParams) *tree {
	tr := &tree{}
	tr.build(X, grad, idx, 0, params)
	if params.Loss == LossSquared {
		return tr
	}

	byLeaf := make(map[int][]int)
	for _, i := range idx {
		leaf := tr.leafIndex(X[i])
		byLeaf[leaf] = append(byLeaf[leaf], i)
	}
	for leaf, samples := range byLeaf {
		tr.nodes[leaf].value = leafValue(y, scores, grad, samples, params)
	}
	return tr
}

func (t *tree) leafIndex(x []float64) int {
	i := 0
	for {
		n := &t.nodes[i]
		if n.leaf {
			return i
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

func (t *tree) build(X [][]float64, grad []float64, idx []int, depth int, params GBTParams) int {
	self := len(t.nodes)
	t.nodes = append(t.nodes, node{leaf: true})

	if depth >= params.MaxDepth || len(idx) < 2*params.MinLeaf {
		t.nodes[self].value = mean(grad, idx)
		return self
	}

	feature, threshold, ok := bestSplit(X, grad, idx, params.MinLeaf)
	if !ok {
		t.nodes[self].value = mean(grad, idx)
		return self
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	t.nodes[self].leaf = false
	t.nodes[self].feature = feature
	t.nodes[self].threshold = threshold
	t.nodes[self].left = t.build(X, grad, left, depth+1, params)
	t.nodes[self].right = t.build(X, grad, right, depth+1, params)
	return self
}

// bestSplit scans every feature for the threshold that minimizes the
// summed squared error of the gradient on both sides.
func bestSplit(X [][]float64, grad []float64, idx []int, minLeaf int) (feature int, threshold float64, ok bool) {
	if len(idx) == 0 {
		return 0, 0, false
	}
	nFeatures := len(X[idx[0]])
	bestGain := 0.0

	var totalSum float64
	for _, i := range idx {
		totalSum += grad[i]
	}
	totalSS := totalSum * totalSum / float64(len(idx))

	order := make([]int, len(idx))
	for f := 0; f < nFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += grad[i]
			if pos+1 < minLeaf || len(order)-pos-1 < minLeaf {
				continue
			}
			if X[order[pos]][f] == X[order[pos+1]][f] {
				continue
			}
			nl := float64(pos + 1)
			nr := float64(len(order) - pos - 1)
			rightSum := totalSum - leftSum
			gain := leftSum*leftSum/nl + rightSum*rightSum/nr - totalSS
			if gain > bestGain+1e-12 {
				bestGain = gain
				feature = f
				threshold = (X[order[pos]][f] + X[order[pos+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (t *tree) predict(x []float64) float64 {
	return t.nodes[t.leafIndex(x)].value
}

// leafValue computes the loss-specific optimal value over the samples
// that landed in a leaf.
func leafValue(y, scores, grad []float64, leafIdx []int, params GBTParams) float64 {
	if len(leafIdx) == 0 {
		return 0
	}
	switch params.Loss {
	case LossQuantile:
		// Optimal step is the Alpha-quantile of the residuals.
		res := make([]float64, 0, len(leafIdx))
		for _, i := range leafIdx {
			res = append(res, y[i]-scores[i])
		}
		sort.Float64s(res)
		return quantileSorted(res, params.Alpha)
	case LossLogistic:
		// One Newton step: sum(grad) / sum(p(1-p)).
		var num, den float64
		for _, i := range leafIdx {
			p := sigmoid(scores[i])
			num += grad[i]
			den += p * (1 - p)
		}
		if den < 1e-9 {
			return 0
		}
		return num / den
	default:
		return mean(grad, leafIdx)
	}
}

func mean(vals []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += vals[i]
	}
	return sum / float64(len(idx))
}

func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
