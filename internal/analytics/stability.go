package analytics

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	gstat "gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
)

// TestStabilityPoolability decides whether stability data from multiple lots
// may be pooled into one shelf-life estimate, per ICH Q1E. It fits the
// ANCOVA model assay ~ timepoint * lot and extracts type-II F tests for the
// lot main effect (differing intercepts) and the timepoint x lot interaction
// (differing slopes). Lots pool only when neither is significant; the
// reported p-value is the smaller of the two, the binding constraint.
//
// With fewer than 2 lots or 4 records there is no evidence to test, so the
// result short-circuits to poolable with an explicit reason. A design that
// clears those floors but leaves no residual degrees of freedom (n < 2L+1,
// e.g. two lots of two points each) returns an insufficient-data error
// instead of an untestable verdict with NaN p-values.
func TestStabilityPoolability(records []quality.StabilityRecord, assay string) (stats.PoolabilityResult, error) {
	rows := cleanStability(records, assay)
	lots := distinctLots(rows)
	if len(lots) < 2 || len(rows) < 4 {
		return stats.PoolabilityResult{
			Poolable: true,
			PValue:   1.0,
			Reason:   "not enough data to test poolability",
		}, nil
	}

	n := len(rows)
	nLots := len(lots)
	dfResid := n - 2*nLots
	if dfResid < 1 {
		return stats.PoolabilityResult{}, core.NewInsufficientDataError("poolability", 2*nLots+1, n)
	}

	y := make([]float64, n)
	for i, r := range rows {
		y[i], _ = r.Assay(assay)
	}

	lotIndex := make(map[string]int, nLots)
	for i, l := range lots {
		lotIndex[l] = i
	}

	// Nested design matrices: timepoint only, + lot dummies, + interaction.
	rssT, err := olsRSS(y, designMatrix(rows, lotIndex, false, false))
	if err != nil {
		return stats.PoolabilityResult{}, err
	}
	rssTL, err := olsRSS(y, designMatrix(rows, lotIndex, true, false))
	if err != nil {
		return stats.PoolabilityResult{}, err
	}
	rssFull, err := olsRSS(y, designMatrix(rows, lotIndex, true, true))
	if err != nil {
		return stats.PoolabilityResult{}, err
	}

	mse := rssFull / float64(dfResid)
	if mse <= 0 {
		return stats.PoolabilityResult{}, core.ErrZeroVariance
	}

	dfLot := float64(nLots - 1)
	fDist := distuv.F{D1: dfLot, D2: float64(dfResid)}

	fLot := ((rssT - rssTL) / dfLot) / mse
	fInter := ((rssTL - rssFull) / dfLot) / mse
	pLot := 1 - fDist.CDF(fLot)
	pInter := 1 - fDist.CDF(fInter)

	return stats.PoolabilityResult{
		Poolable:     pLot > stats.DefaultAlpha && pInter > stats.DefaultAlpha,
		PValue:       clamp01(min(pLot, pInter)),
		LotEffectP:   clamp01(pLot),
		InteractionP: clamp01(pInter),
	}, nil
}

// CalculateStabilityProjection fits the linear assay-vs-timepoint trend used
// for shelf-life extrapolation. When usePooled is true the regression runs
// across all lots jointly; otherwise it runs on the first lot encountered in
// record order only. That single-lot fallback is a known simplification
// carried from the validated revision of this analysis: callers wanting a
// specific lot's trend must filter the records themselves, and the result
// names the lot actually fitted.
func CalculateStabilityProjection(records []quality.StabilityRecord, assay string, usePooled bool) (stats.ProjectionResult, error) {
	rows := cleanStability(records, assay)
	if len(rows) < 2 {
		return stats.ProjectionResult{}, nil
	}

	fit := rows
	lotID := ""
	if !usePooled {
		lotID = rows[0].LotID
		fit = fit[:0:0]
		for _, r := range rows {
			if r.LotID == lotID {
				fit = append(fit, r)
			}
		}
		if len(fit) < 2 {
			return stats.ProjectionResult{}, nil
		}
	}

	xs := make([]float64, len(fit))
	ys := make([]float64, len(fit))
	for i, r := range fit {
		xs[i] = r.TimepointMonths
		ys[i], _ = r.Assay(assay)
	}
	if sampleRange(xs) == 0 {
		return stats.ProjectionResult{}, core.ErrZeroVariance
	}

	intercept, slope := gstat.LinearRegression(xs, ys, nil, false)
	r2 := gstat.RSquared(xs, ys, nil, intercept, slope)

	// Prediction range spans all cleaned timepoints, pooled or not, so the
	// fitted line always draws across the full study window.
	minT, maxT := rows[0].TimepointMonths, rows[0].TimepointMonths
	for _, r := range rows {
		if r.TimepointMonths < minT {
			minT = r.TimepointMonths
		}
		if r.TimepointMonths > maxT {
			maxT = r.TimepointMonths
		}
	}

	return stats.ProjectionResult{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		PredX:     [2]float64{minT, maxT},
		PredY:     [2]float64{intercept + slope*minT, intercept + slope*maxT},
		LotID:     lotID,
		Pooled:    usePooled,
		Valid:     true,
	}, nil
}

// cleanStability drops rows missing the lot id, the assay value, or a valid
// non-negative timepoint.
func cleanStability(records []quality.StabilityRecord, assay string) []quality.StabilityRecord {
	out := make([]quality.StabilityRecord, 0, len(records))
	for _, r := range records {
		if r.LotID == "" || r.TimepointMonths < 0 {
			continue
		}
		if _, ok := r.Assay(assay); !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func distinctLots(rows []quality.StabilityRecord) []string {
	seen := make(map[string]bool)
	lots := make([]string, 0, 4)
	for _, r := range rows {
		if !seen[r.LotID] {
			seen[r.LotID] = true
			lots = append(lots, r.LotID)
		}
	}
	sort.Strings(lots)
	return lots
}

// designMatrix builds the ANCOVA design: intercept and timepoint always,
// plus treatment-coded lot dummies and timepoint x lot interaction columns
// when requested. The first lot in sorted order is the reference level.
func designMatrix(rows []quality.StabilityRecord, lotIndex map[string]int, withLot, withInteraction bool) *mat.Dense {
	nLots := len(lotIndex)
	cols := 2
	if withLot {
		cols += nLots - 1
	}
	if withInteraction {
		cols += nLots - 1
	}

	x := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		t := r.TimepointMonths
		x.Set(i, 0, 1)
		x.Set(i, 1, t)
		li := lotIndex[r.LotID]
		if withLot && li > 0 {
			x.Set(i, 2+li-1, 1)
		}
		if withInteraction && li > 0 {
			x.Set(i, 2+(nLots-1)+li-1, t)
		}
	}
	return x
}

// olsRSS fits y = X*beta by QR least squares and returns the residual sum
// of squares.
func olsRSS(y []float64, x *mat.Dense) (float64, error) {
	var qr mat.QR
	qr.Factorize(x)

	b := mat.NewDense(len(y), 1, y)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return 0, core.NewInvalidInputError("design_matrix", "rank-deficient stability design: "+err.Error())
	}

	var fitted mat.Dense
	fitted.Mul(x, &beta)

	rss := 0.0
	for i := range y {
		resid := y[i] - fitted.At(i, 0)
		rss += resid * resid
	}
	return rss, nil
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
