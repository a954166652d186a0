// Package anomaly flags statistically unusual migration patterns: it builds
// per node-day volume/distance features from the flow table, scores them
// with an isolation forest, and propagates the labels back onto every edge.
package anomaly

import (
	"math"
	"math/rand"
	"sort"
)

// IsolationForest is an unsupervised outlier model: points that random
// axis-parallel splits isolate quickly are outliers. Scoring follows the
// standard path-length normalization, so scores live in (-1, 0] with lower
// values meaning more anomalous.
type IsolationForest struct {
	trees      []*isoNode
	numTrees   int
	maxSamples int
	norm       float64
	rng        *rand.Rand
}

type isoNode struct {
	splitAttr int
	splitVal  float64
	left      *isoNode
	right     *isoNode
	size      int // external node only
}

// NewIsolationForest creates a forest of numTrees trees, each grown on a
// subsample of at most maxSamples points drawn from the seeded source.
func NewIsolationForest(numTrees, maxSamples int, rng *rand.Rand) *IsolationForest {
	return &IsolationForest{
		numTrees:   numTrees,
		maxSamples: maxSamples,
		rng:        rng,
	}
}

// Fit grows the forest over the observation matrix.
func (f *IsolationForest) Fit(x [][]float64) {
	n := len(x)
	psi := f.maxSamples
	if psi > n {
		psi = n
	}
	f.norm = avgPathLength(psi)
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))

	f.trees = make([]*isoNode, 0, f.numTrees)
	for t := 0; t < f.numTrees; t++ {
		sample := make([][]float64, 0, psi)
		for _, j := range f.rng.Perm(n)[:psi] {
			sample = append(sample, x[j])
		}
		f.trees = append(f.trees, f.grow(sample, 0, heightLimit))
	}
}

func (f *IsolationForest) grow(x [][]float64, depth, limit int) *isoNode {
	if depth >= limit || len(x) <= 1 {
		return &isoNode{size: len(x)}
	}

	attr := f.rng.Intn(len(x[0]))
	lo, hi := x[0][attr], x[0][attr]
	for _, row := range x[1:] {
		if row[attr] < lo {
			lo = row[attr]
		}
		if row[attr] > hi {
			hi = row[attr]
		}
	}
	if lo == hi {
		return &isoNode{size: len(x)}
	}

	split := lo + f.rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range x {
		if row[attr] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &isoNode{
		splitAttr: attr,
		splitVal:  split,
		left:      f.grow(left, depth+1, limit),
		right:     f.grow(right, depth+1, limit),
	}
}

// ScoreSamples returns the negated anomaly score -s(x) per observation,
// matching the convention where lower means more anomalous.
func (f *IsolationForest) ScoreSamples(x [][]float64) []float64 {
	scores := make([]float64, len(x))
	for i, row := range x {
		var sum float64
		for _, tree := range f.trees {
			sum += pathLength(row, tree, 0)
		}
		mean := sum / float64(len(f.trees))
		scores[i] = -math.Pow(2, -mean/f.norm)
	}
	return scores
}

func pathLength(row []float64, node *isoNode, depth float64) float64 {
	if node.left == nil {
		return depth + avgPathLength(node.size)
	}
	if row[node.splitAttr] < node.splitVal {
		return pathLength(row, node.left, depth+1)
	}
	return pathLength(row, node.right, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search
// over n points, used to normalize isolation depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// percentile returns the q-th percentile (0..100) of values using linear
// interpolation between closest ranks.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
