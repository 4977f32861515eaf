package analytics

import (
	"math"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
)

// PerformTukeyHSD runs Tukey's Honestly Significant Difference post-hoc
// comparison on every group pair at family-wise alpha 0.05. MeanDiff is
// mean(group2) - mean(group1) with groups in lexicographic order, matching
// the convention of the omnibus ANOVA it follows.
//
// Fewer than two groups with data returns an empty table, not an error:
// there is nothing to compare, which is an answer in itself.
func PerformTukeyHSD(records []quality.SampleRecord, valueField, groupField string) ([]stats.TukeyComparison, error) {
	names, groups := partitionByGroup(records, valueField, groupField)
	out := make([]stats.TukeyComparison, 0)
	if len(names) < 2 {
		return out, nil
	}

	total := 0
	for _, name := range names {
		total += len(groups[name])
	}
	k := len(names)
	dfWithin := total - k
	if dfWithin < 1 {
		return nil, core.NewInsufficientDataError("tukey_hsd", k+1, total)
	}

	// Pooled within-group mean square from the one-way decomposition.
	ssWithin := 0.0
	means := make(map[string]float64, k)
	for _, name := range names {
		g := groups[name]
		gm := meanOf(g)
		means[name] = gm
		for _, v := range g {
			ssWithin += (v - gm) * (v - gm)
		}
	}
	mse := ssWithin / float64(dfWithin)
	if mse == 0 {
		return nil, core.ErrZeroVariance
	}

	qCrit := studentizedRangeQuantile(1-stats.DefaultAlpha, k, float64(dfWithin))

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			g1, g2 := names[i], names[j]
			n1, n2 := float64(len(groups[g1])), float64(len(groups[g2]))
			diff := means[g2] - means[g1]

			// Tukey-Kramer standard error for unequal group sizes.
			se := math.Sqrt(mse / 2 * (1/n1 + 1/n2))
			q := math.Abs(diff) / se
			p := 1 - studentizedRangeCDF(q, k, float64(dfWithin))
			if p < 0 {
				p = 0
			}
			halfWidth := qCrit * se

			out = append(out, stats.TukeyComparison{
				Group1:    g1,
				Group2:    g2,
				MeanDiff:  diff,
				AdjustedP: p,
				CILower:   diff - halfWidth,
				CIUpper:   diff + halfWidth,
				Reject:    p < stats.DefaultAlpha,
			})
		}
	}
	return out, nil
}
