package testkit

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"veritas/domain/core"
	"veritas/domain/quality"
)

// LIMSGeneratorConfig configures the mock LIMS data generator
type LIMSGeneratorConfig struct {
	SampleCount int       `json:"sample_count"`
	Seed        int64     `json:"seed"`
	StartTime   time.Time `json:"start_time"`
}

// DefaultLIMSConfig returns sensible defaults for LIMS data generation
func DefaultLIMSConfig() LIMSGeneratorConfig {
	return LIMSGeneratorConfig{
		SampleCount: 500,
		Seed:        42,
		StartTime:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LIMSGenerator generates a cohesive, realistic mock LIMS dataset: HPLC
// sample records, stability study series, seed deviations, and an audit
// trail. Identical config yields identical data.
type LIMSGenerator struct {
	config LIMSGeneratorConfig
	rng    *rand.Rand
}

// NewLIMSGenerator creates a new generator
func NewLIMSGenerator(config LIMSGeneratorConfig) *LIMSGenerator {
	return &LIMSGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

var (
	batchIDs    = []string{"B01-A", "B01-B", "B02-A", "B02-B", "B03-A"}
	studyIDs    = []string{"VX-809-PK-01", "VX-561-Tox-03", "VX-121-Stab-02", "VX-984-Form-05"}
	studyWeight = []float64{0.3, 0.3, 0.2, 0.2}
	instruments = []string{"HPLC-01", "HPLC-02", "HPLC-03", "UPLC-01"}
	instWeight  = []float64{0.4, 0.3, 0.15, 0.15}
	analysts    = []string{"A. Turing", "M. Curie", "R. Franklin", "L. Meitner"}
)

// GenerateHPLCRecords produces the QC sample dataset. HPLC-03 carries an
// injected purity calibration drift so instrument comparability analysis has
// a real signal to find; two point anomalies (a low-purity sample and an
// impossible bio-activity reading) are planted for the anomaly engines.
func (g *LIMSGenerator) GenerateHPLCRecords() []quality.SampleRecord {
	records := make([]quality.SampleRecord, 0, g.config.SampleCount)
	for i := 0; i < g.config.SampleCount; i++ {
		instrument := g.weightedChoice(instruments, instWeight)

		purity := g.normal(99.5, 0.2)
		if instrument == "HPLC-03" {
			// Calibration drift on this unit.
			purity -= 0.35
		}

		rec := quality.SampleRecord{
			SampleID:      fmt.Sprintf("SMP-%d", 1000+i),
			BatchID:       batchIDs[g.rng.Intn(len(batchIDs))],
			StudyID:       g.weightedChoice(studyIDs, studyWeight),
			InstrumentID:  instrument,
			Analyst:       analysts[g.rng.Intn(len(analysts))],
			InjectionTime: core.NewTimestamp(g.config.StartTime.Add(time.Duration(float64(i)*1.5) * time.Hour)),
			CQAs: map[string]float64{
				quality.CQAPurity:       clip(purity, 97.0, 100.0),
				quality.CQAAggregate:    clip(g.normal(0.5, 0.1), 0, 1),
				quality.CQAMainImpurity: clip(g.normal(0.2, 0.05), 0, 1),
				quality.CQABioactivity:  g.normal(105, 5),
			},
		}
		records = append(records, rec)
	}

	// Planted anomalies, matching the seeded demo dataset.
	if len(records) > 10 {
		records[10].CQAs[quality.CQAPurity] = 97.8
	}
	if len(records) > 50 {
		records[50].CQAs[quality.CQABioactivity] = 205.0
	}
	return records
}

var stabilityProducts = []struct {
	name          string
	purityStart   float64
	impurityStart float64
}{
	{"VX-561", 99.5, 0.10},
	{"VX-809", 99.8, 0.05},
}

var (
	stabilityLots       = []string{"A202301", "A202302", "B202301", "B202302"}
	stabilityTimepoints = []float64{0, 3, 6, 9, 12, 18, 24}
)

// GenerateStabilityRecords produces the stability program dataset: every
// product/lot pair measured at the standard pull points, degrading linearly
// with a small lot-specific slope variation. Each lot uses its own derived
// seed so one lot's data is stable regardless of generation order.
func (g *LIMSGenerator) GenerateStabilityRecords() []quality.StabilityRecord {
	records := make([]quality.StabilityRecord, 0, len(stabilityProducts)*len(stabilityLots)*len(stabilityTimepoints))
	for _, product := range stabilityProducts {
		for _, lot := range stabilityLots {
			lotRng := rand.New(rand.NewSource(deriveSeed(g.config.Seed, product.name+lot)))
			puritySlope := -0.05 + lotRng.NormFloat64()*0.005
			impuritySlope := 0.01 + lotRng.NormFloat64()*0.001

			for _, t := range stabilityTimepoints {
				records = append(records, quality.StabilityRecord{
					Product:         product.name,
					LotID:           lot,
					TimepointMonths: t,
					Assays: map[string]float64{
						quality.CQAPurity:       product.purityStart + puritySlope*t + lotRng.NormFloat64()*0.05,
						quality.CQAMainImpurity: product.impurityStart + impuritySlope*t + math.Abs(lotRng.NormFloat64()*0.01),
					},
				})
			}
		}
	}
	return records
}

// GenerateDeviations produces the seed deviation backlog.
func (g *LIMSGenerator) GenerateDeviations() []quality.Deviation {
	now := core.Now()
	seed := []struct {
		id, title, linked string
		status            quality.DeviationStatus
		priority          quality.Priority
	}{
		{"DEV-001", "OOS Result in VX-809-PK-01", "SMP-1010", quality.StatusOpen, quality.PriorityHigh},
		{"DEV-002", "HPLC-03 Calibration Drift", "HPLC-03", quality.StatusInProgress, quality.PriorityMedium},
		{"DEV-003", "TAT Breach for Lot B02-A", "B02-A", quality.StatusInProgress, quality.PriorityMedium},
		{"DEV-004", "Contamination in Stab Chamber", "STAB-CH-03", quality.StatusUnderReview, quality.PriorityHigh},
	}

	deviations := make([]quality.Deviation, 0, len(seed))
	for _, s := range seed {
		deviations = append(deviations, quality.Deviation{
			ID:           core.DeviationID(s.id),
			Title:        s.title,
			Status:       s.status,
			Priority:     s.priority,
			LinkedRecord: s.linked,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return deviations
}

var auditActions = []string{"login", "view_dashboard", "run_analysis", "export_report", "update_deviation", "acknowledge_alert"}

// GenerateAuditEntries produces n historical audit trail rows.
func (g *LIMSGenerator) GenerateAuditEntries(n int) []quality.AuditEntry {
	entries := make([]quality.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		action := auditActions[g.rng.Intn(len(auditActions))]
		entries = append(entries, quality.AuditEntry{
			ID:        core.NewID(),
			Timestamp: core.NewTimestamp(g.config.StartTime.Add(time.Duration(i) * 37 * time.Minute)),
			User:      analysts[g.rng.Intn(len(analysts))],
			Action:    action,
			Details:   fmt.Sprintf("%s via dashboard session", action),
			RecordID:  "N/A",
		})
	}
	return entries
}

func (g *LIMSGenerator) normal(mean, std float64) float64 {
	return g.rng.NormFloat64()*std + mean
}

func (g *LIMSGenerator) weightedChoice(options []string, weights []float64) string {
	r := g.rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return options[i]
		}
	}
	return options[len(options)-1]
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// deriveSeed mixes the base seed with a label so each lot series gets an
// independent but reproducible stream.
func deriveSeed(base int64, label string) int64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return base ^ int64(h.Sum64()&math.MaxInt64)
}
