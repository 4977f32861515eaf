package quality

import (
	"fmt"
	"math"

	"veritas/domain/core"
)

// Canonical field names shared between the analytics engines, the QC rule
// scan, and the HTTP layer. These mirror the LIMS export schema.
const (
	FieldSampleID      = "sample_id"
	FieldBatchID       = "batch_id"
	FieldStudyID       = "study_id"
	FieldInstrumentID  = "instrument_id"
	FieldAnalyst       = "analyst"
	FieldInjectionTime = "injection_time"
)

// Critical Quality Attribute names as they appear in sample records.
const (
	CQAPurity       = "Purity"
	CQAAggregate    = "Aggregate Content"
	CQAMainImpurity = "Main Impurity"
	CQABioactivity  = "Bio-activity"
)

// NullCheckFields is the fixed set of key fields the null-check rule scans.
var NullCheckFields = []string{FieldSampleID, FieldBatchID, CQAPurity, CQABioactivity}

// NonNegativeCQAs lists attributes whose physical meaning forbids negative values.
var NonNegativeCQAs = []string{CQABioactivity}

// SampleRecord is one measured QC event: identifiers plus CQA values.
// A CQA absent from the map is a missing measurement; NaN values are
// normalized to missing by the engines.
type SampleRecord struct {
	SampleID      string             `json:"sample_id"`
	BatchID       string             `json:"batch_id"`
	StudyID       string             `json:"study_id,omitempty"`
	InstrumentID  string             `json:"instrument_id,omitempty"`
	Analyst       string             `json:"analyst,omitempty"`
	InjectionTime core.Timestamp     `json:"injection_time,omitempty"`
	CQAs          map[string]float64 `json:"cqas"`
}

// CQA returns the named attribute value and whether it is present and finite.
func (r SampleRecord) CQA(name string) (float64, bool) {
	v, ok := r.CQAs[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// GroupKey resolves a categorical grouping field by name. Unknown fields
// resolve to the empty string, which the engines treat as missing.
func (r SampleRecord) GroupKey(field string) string {
	switch field {
	case FieldSampleID:
		return r.SampleID
	case FieldBatchID:
		return r.BatchID
	case FieldStudyID:
		return r.StudyID
	case FieldInstrumentID:
		return r.InstrumentID
	case FieldAnalyst:
		return r.Analyst
	}
	return ""
}

// StabilityRecord is one stability study observation keyed by lot and
// timepoint in months.
type StabilityRecord struct {
	Product         string             `json:"product,omitempty"`
	LotID           string             `json:"lot_id"`
	TimepointMonths float64            `json:"timepoint_months"`
	Assays          map[string]float64 `json:"assays"`
}

// Assay returns the named assay value and whether it is present and finite.
func (r StabilityRecord) Assay(name string) (float64, bool) {
	v, ok := r.Assays[name]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SpecLimit is a specification window. Either bound may be absent, meaning
// unbounded on that side.
type SpecLimit struct {
	LSL *float64 `json:"lsl,omitempty"`
	USL *float64 `json:"usl,omitempty"`
}

// Limits builds a SpecLimit from two concrete bounds.
func Limits(lsl, usl float64) SpecLimit {
	return SpecLimit{LSL: &lsl, USL: &usl}
}

// LowerOnly builds a spec limit unbounded above.
func LowerOnly(lsl float64) SpecLimit { return SpecLimit{LSL: &lsl} }

// UpperOnly builds a spec limit unbounded below.
func UpperOnly(usl float64) SpecLimit { return SpecLimit{USL: &usl} }

// Validate enforces the lsl < usl invariant when both bounds are present
// and rejects a window with no bounds at all.
func (s SpecLimit) Validate() error {
	if s.LSL == nil && s.USL == nil {
		return fmt.Errorf("%w: at least one bound required", core.ErrInvalidSpecification)
	}
	if s.LSL != nil && s.USL != nil && *s.LSL >= *s.USL {
		return core.NewInvalidSpecificationError(*s.LSL, *s.USL)
	}
	return nil
}

// Contains reports whether v falls inside the window, treating an absent
// bound as unconstrained on that side.
func (s SpecLimit) Contains(v float64) bool {
	if s.LSL != nil && v < *s.LSL {
		return false
	}
	if s.USL != nil && v > *s.USL {
		return false
	}
	return true
}

func (s SpecLimit) String() string {
	lsl, usl := "-", "-"
	if s.LSL != nil {
		lsl = fmt.Sprintf("%g", *s.LSL)
	}
	if s.USL != nil {
		usl = fmt.Sprintf("%g", *s.USL)
	}
	return fmt.Sprintf("LSL: %s, USL: %s", lsl, usl)
}

// SpecTable maps CQA name to its specification window.
type SpecTable map[string]SpecLimit

// Validate checks every window in the table.
func (t SpecTable) Validate() error {
	for cqa, spec := range t {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("spec for %s: %w", cqa, err)
		}
	}
	return nil
}

// QCRuleConfig toggles the individual checks of the rule-based QC scan.
type QCRuleConfig struct {
	CheckNulls      bool `json:"check_nulls"`
	CheckNegatives  bool `json:"check_negatives"`
	CheckSpecLimits bool `json:"check_spec_limits"`
}

// DefaultQCRuleConfig enables all checks.
func DefaultQCRuleConfig() QCRuleConfig {
	return QCRuleConfig{CheckNulls: true, CheckNegatives: true, CheckSpecLimits: true}
}

// IssueKind categorizes a discrepancy.
type IssueKind string

const (
	IssueMissingValue  IssueKind = "Missing Value"
	IssueNegativeValue IssueKind = "Negative Value"
	IssueOutOfSpec     IssueKind = "Out of Specification"
)

// Discrepancy is one QC rule violation. A record violating several rules
// yields several discrepancies, one per rule fired.
type Discrepancy struct {
	SampleID string    `json:"sample_id"`
	Issue    IssueKind `json:"issue"`
	Detail   string    `json:"detail"`
}
