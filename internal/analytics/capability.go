package analytics

import (
	"math"

	"github.com/montanaflynn/stats"

	"veritas/domain/core"
	"veritas/domain/quality"
)

// CalculateCpk computes the process capability index of a sample against a
// specification window, using the population standard deviation. NaN values
// are dropped before calculation. A bound absent from the window leaves
// that side unconstrained (capability +Inf on that side), so a one-sided
// spec yields Cpu or Cpl directly.
//
// A sample that is empty after cleaning, or that has zero variance, fails
// with an insufficient-data error rather than reporting 0.0: a zero-spread
// process has no defined capability index and silently returning a number
// would mask a data problem in a regulated report.
func CalculateCpk(values []float64, limits quality.SpecLimit) (float64, error) {
	if err := limits.Validate(); err != nil {
		return 0, err
	}

	clean := dropNaN(values)
	if len(clean) == 0 {
		return 0, core.NewInsufficientDataError("cpk", 1, 0)
	}

	mean, _ := stats.Mean(clean)
	std, _ := stats.StandardDeviation(clean)
	if std == 0 || math.IsNaN(std) {
		return 0, core.ErrZeroVariance
	}

	cpu := math.Inf(1)
	if limits.USL != nil {
		cpu = (*limits.USL - mean) / (3 * std)
	}
	cpl := math.Inf(1)
	if limits.LSL != nil {
		cpl = (mean - *limits.LSL) / (3 * std)
	}

	return math.Min(cpu, cpl), nil
}

// dropNaN returns a copy of values without NaN or infinite entries.
func dropNaN(values []float64) []float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	return clean
}
