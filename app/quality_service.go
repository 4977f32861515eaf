package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
	"veritas/internal"
	"veritas/internal/analytics"
	"veritas/internal/repository"
)

// QualityService orchestrates the analytics engines for the dashboard
// workflows: capability review, instrument comparability, stability
// assessment, and data-integrity review with deviation filing. The engines
// themselves stay pure; all data access and audit logging happens here.
type QualityService struct {
	repo      repository.Repository
	specs     quality.SpecTable
	cpkTarget float64
	log       *internal.Logger
}

// NewQualityService creates a quality service
func NewQualityService(repo repository.Repository, specs quality.SpecTable, cpkTarget float64) *QualityService {
	if cpkTarget <= 0 {
		cpkTarget = stats.CpkTarget
	}
	return &QualityService{
		repo:      repo,
		specs:     specs,
		cpkTarget: cpkTarget,
		log:       internal.DefaultLogger.With("quality_service"),
	}
}

// CapabilitySummary is one CQA's row in a capability sweep.
type CapabilitySummary struct {
	CQA       string                `json:"cqa"`
	N         int                   `json:"n"`
	Cpk       float64               `json:"cpk"`
	Capable   bool                  `json:"capable"`
	Normality stats.NormalityResult `json:"normality"`
	Error     string                `json:"error,omitempty"`
}

// CapabilitySweep computes Cpk and a normality check for every requested
// CQA concurrently. Engines never mutate their inputs, so all goroutines
// can share the same record slice. Per-CQA failures (no spec on file,
// insufficient data) land in that CQA's row rather than aborting the sweep.
func (s *QualityService) CapabilitySweep(ctx context.Context, records []quality.SampleRecord, cqas []string) ([]CapabilitySummary, error) {
	summaries := make([]CapabilitySummary, len(cqas))

	g, _ := errgroup.WithContext(ctx)
	for i, cqa := range cqas {
		i, cqa := i, cqa
		g.Go(func() error {
			summaries[i] = s.capabilityFor(records, cqa)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *QualityService) capabilityFor(records []quality.SampleRecord, cqa string) CapabilitySummary {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.CQA(cqa); ok {
			values = append(values, v)
		}
	}

	summary := CapabilitySummary{
		CQA:       cqa,
		N:         len(values),
		Normality: analytics.PerformNormalityTest(values),
	}

	spec, ok := s.specs[cqa]
	if !ok {
		summary.Error = "no specification limits on file"
		return summary
	}

	cpk, err := analytics.CalculateCpk(values, spec)
	if err != nil {
		summary.Error = err.Error()
		return summary
	}
	summary.Cpk = cpk
	summary.Capable = cpk >= s.cpkTarget
	return summary
}

// ComparabilityResult bundles the omnibus ANOVA with its post-hoc table.
type ComparabilityResult struct {
	Anova          stats.AnovaResult       `json:"anova"`
	Tukey          []stats.TukeyComparison `json:"tukey,omitempty"`
	TukeyTriggered bool                    `json:"tukey_triggered"`
}

// AssessComparability runs the one-way ANOVA and, when the omnibus result
// is significant with more than two groups, automatically follows up with
// Tukey HSD. ANOVA alone says the groups differ; only the post-hoc table
// says which.
func (s *QualityService) AssessComparability(ctx context.Context, records []quality.SampleRecord, valueField, groupField string) (ComparabilityResult, error) {
	anova, err := analytics.PerformANOVA(records, valueField, groupField)
	if err != nil {
		return ComparabilityResult{}, err
	}

	result := ComparabilityResult{Anova: anova}
	if anova.Significant() && anova.GroupCount > 2 {
		tukey, err := analytics.PerformTukeyHSD(records, valueField, groupField)
		if err != nil {
			return ComparabilityResult{}, err
		}
		result.Tukey = tukey
		result.TukeyTriggered = true
		s.log.Info("anova significant for %s by %s (p=%.4g), ran Tukey HSD over %d pairs",
			valueField, groupField, anova.PValue, len(tukey))
	}
	return result, nil
}

// StabilityAssessment pairs the poolability verdict with the projection it
// justifies.
type StabilityAssessment struct {
	Poolability stats.PoolabilityResult `json:"poolability"`
	Projection  stats.ProjectionResult  `json:"projection"`
}

// AssessStability runs the ICH Q1E poolability test and then projects the
// degradation trend, pooling lots only when the test allows it.
func (s *QualityService) AssessStability(ctx context.Context, records []quality.StabilityRecord, assay string) (StabilityAssessment, error) {
	pool, err := analytics.TestStabilityPoolability(records, assay)
	if err != nil {
		return StabilityAssessment{}, err
	}

	proj, err := analytics.CalculateStabilityProjection(records, assay, pool.Poolable)
	if err != nil {
		return StabilityAssessment{}, err
	}
	return StabilityAssessment{Poolability: pool, Projection: proj}, nil
}

// QCReview is the outcome of a data-integrity review.
type QCReview struct {
	Discrepancies   []quality.Discrepancy `json:"discrepancies"`
	FiledDeviations []quality.Deviation   `json:"filed_deviations,omitempty"`
}

// ReviewDataIntegrity scans records with the rule engine, writes an audit
// entry for the scan, and when fileDeviations is set, files one high
// priority deviation per out-of-spec sample. Missing-value and negative
// value findings stay in the report for analyst triage; only confirmed OOS
// results open a deviation automatically.
func (s *QualityService) ReviewDataIntegrity(ctx context.Context, records []quality.SampleRecord, rules quality.QCRuleConfig, user string, fileDeviations bool) (QCReview, error) {
	discrepancies := analytics.ApplyQCRules(records, rules, s.specs)
	review := QCReview{Discrepancies: discrepancies}

	s.repo.WriteAuditLog(user, "qc_scan",
		fmt.Sprintf("rule-based QC scan over %d records, %d findings", len(records), len(discrepancies)), "")

	if !fileDeviations {
		return review, nil
	}

	filed := make(map[string]bool)
	for _, d := range discrepancies {
		if d.Issue != quality.IssueOutOfSpec || filed[d.SampleID] {
			continue
		}
		filed[d.SampleID] = true

		dev, err := s.repo.CreateDeviation("OOS Result for "+d.SampleID, d.SampleID, quality.PriorityHigh)
		if err != nil {
			return QCReview{}, err
		}
		s.repo.WriteAuditLog(user, "create_deviation", d.Detail, dev.ID.String())
		review.FiledDeviations = append(review.FiledDeviations, dev)
	}
	return review, nil
}

// UpdateDeviation transitions a deviation and records the change in the
// audit trail.
func (s *QualityService) UpdateDeviation(ctx context.Context, id core.DeviationID, status quality.DeviationStatus, user string) (quality.Deviation, error) {
	dev, err := s.repo.UpdateDeviationStatus(id, status)
	if err != nil {
		return quality.Deviation{}, err
	}
	s.repo.WriteAuditLog(user, "update_deviation", "status set to "+string(status), id.String())
	return dev, nil
}
