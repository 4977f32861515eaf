package analytics

import (
	"math"
	"math/rand"
	"sort"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
)

const (
	forestTrees     = 100
	forestSubsample = 256
)

// RunAnomalyDetection fits an Isolation Forest (Liu, Ting, Zhou 2008) over
// exactly the given numeric fields, after dropping rows with any missing
// value in those fields. contamination is the expected outlier fraction and
// must lie in (0, 0.5). The top round(N*contamination) anomaly scores are
// labeled outliers, so the flagged count tracks the requested rate.
//
// The forest is randomized; identical inputs and seed give identical output.
func RunAnomalyDetection(records []quality.SampleRecord, fields []string, contamination float64, seed int64) (stats.AnomalyResult, error) {
	if contamination <= 0 || contamination >= 0.5 {
		return stats.AnomalyResult{}, core.NewInvalidParameterError("contamination", contamination, "must be in (0, 0.5)")
	}
	if len(fields) == 0 {
		return stats.AnomalyResult{}, core.NewInvalidInputError("fields", "at least one numeric field required")
	}

	fitted := make([]quality.SampleRecord, 0, len(records))
	matrix := make([][]float64, 0, len(records))
	for _, r := range records {
		row := make([]float64, len(fields))
		ok := true
		for j, f := range fields {
			v, present := r.CQA(f)
			if !present {
				ok = false
				break
			}
			row[j] = v
		}
		if ok {
			fitted = append(fitted, r)
			matrix = append(matrix, row)
		}
	}

	result := stats.AnomalyResult{
		Labels: make([]stats.AnomalyLabel, 0),
		Scores: make([]float64, 0),
		Fitted: make([]quality.SampleRecord, 0),
	}
	if len(matrix) < 2 {
		return result, nil
	}

	forest := fitIsolationForest(matrix, rand.New(rand.NewSource(seed)))
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		scores[i] = forest.score(row)
	}

	// Threshold at the contamination quantile: the highest-scoring
	// round(N*c) rows are outliers.
	nOutliers := int(math.Round(contamination * float64(len(matrix))))
	labels := labelByScore(scores, nOutliers)

	result.Labels = labels
	result.Scores = scores
	result.Fitted = fitted
	return result, nil
}

// labelByScore marks the nOutliers highest scores as outliers, breaking
// ties by row order for determinism.
func labelByScore(scores []float64, nOutliers int) []stats.AnomalyLabel {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	labels := make([]stats.AnomalyLabel, len(scores))
	for i := range labels {
		labels[i] = stats.LabelInlier
	}
	for i := 0; i < nOutliers && i < len(order); i++ {
		labels[order[i]] = stats.LabelOutlier
	}
	return labels
}

// isolationForest is an ensemble of random isolation trees over a shared
// feature matrix.
type isolationForest struct {
	trees  []*isoNode
	cPsi   float64
	limit  int
	fields int
}

type isoNode struct {
	left, right *isoNode
	splitField  int
	splitValue  float64
	size        int
}

func fitIsolationForest(matrix [][]float64, rng *rand.Rand) *isolationForest {
	n := len(matrix)
	psi := forestSubsample
	if psi > n {
		psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))
	if limit < 1 {
		limit = 1
	}

	f := &isolationForest{
		cPsi:   avgPathLength(psi),
		limit:  limit,
		fields: len(matrix[0]),
	}
	for t := 0; t < forestTrees; t++ {
		sample := make([][]float64, 0, psi)
		for _, idx := range rng.Perm(n)[:psi] {
			sample = append(sample, matrix[idx])
		}
		f.trees = append(f.trees, buildIsoTree(sample, 0, limit, rng))
	}
	return f
}

func buildIsoTree(rows [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if len(rows) <= 1 || depth >= limit {
		return &isoNode{size: len(rows)}
	}

	// Only fields with spread can isolate; a fully constant partition is a
	// leaf regardless of depth.
	splittable := make([]int, 0, len(rows[0]))
	for j := range rows[0] {
		lo, hi := rows[0][j], rows[0][j]
		for _, row := range rows {
			lo = math.Min(lo, row[j])
			hi = math.Max(hi, row[j])
		}
		if hi > lo {
			splittable = append(splittable, j)
		}
	}
	if len(splittable) == 0 {
		return &isoNode{size: len(rows)}
	}

	field := splittable[rng.Intn(len(splittable))]
	lo, hi := rows[0][field], rows[0][field]
	for _, row := range rows {
		lo = math.Min(lo, row[field])
		hi = math.Max(hi, row[field])
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if row[field] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(rows)}
	}

	return &isoNode{
		splitField: field,
		splitValue: split,
		left:       buildIsoTree(left, depth+1, limit, rng),
		right:      buildIsoTree(right, depth+1, limit, rng),
		size:       len(rows),
	}
}

// score returns the anomaly score in (0,1); values near 1 isolate quickly
// and are anomalous, values well below 0.5 are ordinary.
func (f *isolationForest) score(row []float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/f.cPsi)
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.splitField] < node.splitValue {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is c(n): the expected path length of an unsuccessful BST
// search over n points, used both to terminate leaves and to normalize
// scores.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		const eulerGamma = 0.5772156649015329
		h := math.Log(fn-1) + eulerGamma
		return 2*h - 2*(fn-1)/fn
	}
}
