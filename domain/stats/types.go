package stats

import (
	"veritas/domain/quality"
)

// DefaultAlpha is the family-wise significance level used across the
// hypothesis-testing engines.
const DefaultAlpha = 0.05

// CpkTarget is the conventional capability threshold for a capable process.
const CpkTarget = 1.33

// AnovaResult is the outcome of a one-way ANOVA under the null hypothesis
// that all group means are equal.
type AnovaResult struct {
	FStat      float64 `json:"f_stat"`
	PValue     float64 `json:"p_value"`
	DFBetween  int     `json:"df_between"`
	DFWithin   int     `json:"df_within"`
	GroupCount int     `json:"group_count"`
}

// Significant reports whether the omnibus test rejects at DefaultAlpha.
func (r AnovaResult) Significant() bool {
	return r.PValue <= DefaultAlpha
}

// TukeyComparison is one pairwise row of a Tukey HSD post-hoc table.
// MeanDiff is mean(Group2) - mean(Group1); Reject means the difference is
// significant after family-wise correction.
type TukeyComparison struct {
	Group1    string  `json:"group1"`
	Group2    string  `json:"group2"`
	MeanDiff  float64 `json:"mean_diff"`
	AdjustedP float64 `json:"adjusted_p"`
	CILower   float64 `json:"ci_lower"`
	CIUpper   float64 `json:"ci_upper"`
	Reject    bool    `json:"reject"`
}

// NormalityResult is the outcome of a Shapiro-Wilk test. Statistic and
// PValue are nil when the sample was too sparse to test; Conclusion always
// carries renderable text.
type NormalityResult struct {
	Statistic  *float64 `json:"statistic"`
	PValue     *float64 `json:"p_value"`
	Conclusion string   `json:"conclusion"`
}

// Tested reports whether the test actually ran.
func (r NormalityResult) Tested() bool {
	return r.Statistic != nil && r.PValue != nil
}

// PoolabilityResult is the ICH Q1E lot-poolability determination.
// PValue is the more conservative of the lot main effect and the
// timepoint x lot interaction. Reason is set when the test short-circuited.
type PoolabilityResult struct {
	Poolable     bool    `json:"poolable"`
	PValue       float64 `json:"p_value"`
	LotEffectP   float64 `json:"lot_effect_p,omitempty"`
	InteractionP float64 `json:"interaction_p,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// ProjectionResult is the linear shelf-life trend fit. PredX holds the
// min/max observed timepoint, PredY the fitted line at those points.
// Valid is false when fewer than two usable points were available.
type ProjectionResult struct {
	Slope     float64    `json:"slope"`
	Intercept float64    `json:"intercept"`
	RSquared  float64    `json:"r_squared"`
	PredX     [2]float64 `json:"pred_x"`
	PredY     [2]float64 `json:"pred_y"`
	LotID     string     `json:"lot_id,omitempty"`
	Pooled    bool       `json:"pooled"`
	Valid     bool       `json:"valid"`
}

// AnomalyLabel classifies one fitted row.
type AnomalyLabel string

const (
	LabelInlier  AnomalyLabel = "inlier"
	LabelOutlier AnomalyLabel = "outlier"
)

// AnomalyResult pairs per-row labels with the exact subset of input rows
// the model was fitted on, so callers can align them positionally.
type AnomalyResult struct {
	Labels []AnomalyLabel         `json:"labels"`
	Scores []float64              `json:"scores"`
	Fitted []quality.SampleRecord `json:"fitted"`
}

// OutlierCount returns the number of rows labeled outlier.
func (r AnomalyResult) OutlierCount() int {
	n := 0
	for _, l := range r.Labels {
		if l == LabelOutlier {
			n++
		}
	}
	return n
}
