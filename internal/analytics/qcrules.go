package analytics

import (
	"fmt"
	"sort"
	"strings"

	"veritas/domain/quality"
)

// ApplyQCRules runs the deterministic data-integrity scan: three independent
// checks, each gated by its toggle. A record violating several rules yields
// one discrepancy per rule fired, never a merged row. A clean dataset
// returns an empty (never nil) slice with the same schema.
func ApplyQCRules(records []quality.SampleRecord, rules quality.QCRuleConfig, specs quality.SpecTable) []quality.Discrepancy {
	discrepancies := make([]quality.Discrepancy, 0)

	if rules.CheckNulls {
		for _, r := range records {
			missing := missingKeyFields(r)
			if len(missing) > 0 {
				discrepancies = append(discrepancies, quality.Discrepancy{
					SampleID: r.SampleID,
					Issue:    quality.IssueMissingValue,
					Detail:   fmt.Sprintf("Null found in: [%s]", strings.Join(missing, " ")),
				})
			}
		}
	}

	if rules.CheckNegatives {
		for _, r := range records {
			for _, cqa := range quality.NonNegativeCQAs {
				if v, ok := r.CQA(cqa); ok && v < 0 {
					discrepancies = append(discrepancies, quality.Discrepancy{
						SampleID: r.SampleID,
						Issue:    quality.IssueNegativeValue,
						Detail:   fmt.Sprintf("%s is %.2f", cqa, v),
					})
				}
			}
		}
	}

	if rules.CheckSpecLimits {
		cqas := make([]string, 0, len(specs))
		for cqa := range specs {
			cqas = append(cqas, cqa)
		}
		sort.Strings(cqas)

		for _, cqa := range cqas {
			spec := specs[cqa]
			for _, r := range records {
				v, ok := r.CQA(cqa)
				if !ok || spec.Contains(v) {
					continue
				}
				discrepancies = append(discrepancies, quality.Discrepancy{
					SampleID: r.SampleID,
					Issue:    quality.IssueOutOfSpec,
					Detail:   fmt.Sprintf("%s is %.2f, outside spec of %s", cqa, v, spec),
				})
			}
		}
	}

	return discrepancies
}

// missingKeyFields lists null-check fields absent from the record, in the
// fixed scan order.
func missingKeyFields(r quality.SampleRecord) []string {
	var missing []string
	for _, field := range quality.NullCheckFields {
		switch field {
		case quality.FieldSampleID:
			if r.SampleID == "" {
				missing = append(missing, field)
			}
		case quality.FieldBatchID:
			if r.BatchID == "" {
				missing = append(missing, field)
			}
		default:
			if _, ok := r.CQA(field); !ok {
				missing = append(missing, field)
			}
		}
	}
	return missing
}
