package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Forest is a serialized isolation forest. Anomaly scores follow the
// standard formulation: shorter average isolation path means more
// anomalous, normalized to (0, 1) with the threshold fixed at fit time
// from the contamination rate.
type Forest struct {
	Trees      []*TreeNode `json:"trees"`
	SampleSize int         `json:"sampleSize"`
	Threshold  float64     `json:"threshold"`
}

// TreeNode is one node of an isolation tree. Leaves have no children and
// record how many training points collapsed into them.
type TreeNode struct {
	Feature int       `json:"feature,omitempty"`
	Split   float64   `json:"split,omitempty"`
	Left    *TreeNode `json:"left,omitempty"`
	Right   *TreeNode `json:"right,omitempty"`
	Size    int       `json:"size,omitempty"`
}

// Anomalous scores a point and compares it to the fitted threshold.
// ok is false when the forest or the point is malformed.
func (f *Forest) Anomalous(point []float64) (anomalous bool, ok bool) {
	score, ok := f.Score(point)
	if !ok {
		return false, false
	}
	return score >= f.Threshold, true
}

// Score computes the anomaly score in (0, 1) for a point.
func (f *Forest) Score(point []float64) (float64, bool) {
	if f == nil || len(f.Trees) == 0 || f.SampleSize < 2 || len(point) == 0 {
		return 0, false
	}
	for _, v := range point {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
	}

	var total float64
	for _, tree := range f.Trees {
		depth, ok := pathLength(tree, point, 0)
		if !ok {
			return 0, false
		}
		total += depth
	}
	avg := total / float64(len(f.Trees))

	return math.Pow(2, -avg/avgPathLength(f.SampleSize)), true
}

func pathLength(node *TreeNode, point []float64, depth float64) (float64, bool) {
	for node != nil {
		if node.Left == nil && node.Right == nil {
			return depth + avgPathLength(node.Size), true
		}
		if node.Feature < 0 || node.Feature >= len(point) {
			return 0, false
		}
		if point[node.Feature] < node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
		depth++
	}
	return 0, false
}

// avgPathLength is c(n), the average unsuccessful-search path length of a
// binary search tree with n nodes.
func avgPathLength(n int) float64 {
	switch {
	case n > 2:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	case n == 2:
		return 1
	default:
		return 0
	}
}

const eulerGamma = 0.5772156649

// FitOptions controls forest training.
type FitOptions struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

// DefaultFitOptions mirrors the offline trainer's defaults.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.05,
		Seed:          42,
	}
}

// Fit trains an isolation forest over the sample matrix. Each row is one
// point; all rows must share the feature width of the first. The anomaly
// threshold is set so roughly Contamination of the training set scores at
// or above it.
func Fit(samples [][]float64, opts FitOptions) *Forest {
	if len(samples) == 0 {
		return nil
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.SampleSize <= 0 || opts.SampleSize > len(samples) {
		opts.SampleSize = len(samples)
	}
	if opts.SampleSize < 2 {
		opts.SampleSize = 2
	}
	if opts.Contamination <= 0 || opts.Contamination >= 1 {
		opts.Contamination = 0.05
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	heightLimit := int(math.Ceil(math.Log2(float64(opts.SampleSize))))

	forest := &Forest{
		Trees:      make([]*TreeNode, 0, opts.Trees),
		SampleSize: opts.SampleSize,
	}

	for i := 0; i < opts.Trees; i++ {
		sub := subsample(samples, opts.SampleSize, rng)
		forest.Trees = append(forest.Trees, buildTree(sub, 0, heightLimit, rng))
	}

	// Fix the decision threshold from the training score distribution.
	scores := make([]float64, 0, len(samples))
	for _, s := range samples {
		if score, ok := forest.Score(s); ok {
			scores = append(scores, score)
		}
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * (1 - opts.Contamination))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	if idx < 0 {
		idx = 0
	}
	forest.Threshold = scores[idx]

	return forest
}

func subsample(samples [][]float64, n int, rng *rand.Rand) [][]float64 {
	if n >= len(samples) {
		return samples
	}
	perm := rng.Perm(len(samples))
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = samples[perm[i]]
	}
	return out
}

func buildTree(samples [][]float64, depth, heightLimit int, rng *rand.Rand) *TreeNode {
	if len(samples) <= 1 || depth >= heightLimit {
		return &TreeNode{Size: len(samples)}
	}

	features := len(samples[0])
	feature := rng.Intn(features)

	min, max := samples[0][feature], samples[0][feature]
	for _, s := range samples {
		if s[feature] < min {
			min = s[feature]
		}
		if s[feature] > max {
			max = s[feature]
		}
	}
	if min == max {
		return &TreeNode{Size: len(samples)}
	}

	split := min + rng.Float64()*(max-min)

	var left, right [][]float64
	for _, s := range samples {
		if s[feature] < split {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &TreeNode{
		Feature: feature,
		Split:   split,
		Left:    buildTree(left, depth+1, heightLimit, rng),
		Right:   buildTree(right, depth+1, heightLimit, rng),
	}
}
