package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
)

// PerformANOVA runs a classical one-way ANOVA of valueField partitioned by
// groupField. Records missing either field are dropped per group. Requires
// at least two non-empty groups.
func PerformANOVA(records []quality.SampleRecord, valueField, groupField string) (stats.AnovaResult, error) {
	names, groups := partitionByGroup(records, valueField, groupField)
	if len(names) < 2 {
		return stats.AnovaResult{}, core.ErrInsufficientGroups
	}

	total := 0
	grand := 0.0
	for _, name := range names {
		for _, v := range groups[name] {
			grand += v
			total++
		}
	}
	grand /= float64(total)

	ssBetween, ssWithin := 0.0, 0.0
	for _, name := range names {
		g := groups[name]
		gm := meanOf(g)
		ssBetween += float64(len(g)) * (gm - grand) * (gm - grand)
		for _, v := range g {
			ssWithin += (v - gm) * (v - gm)
		}
	}

	dfBetween := len(names) - 1
	dfWithin := total - len(names)
	if dfWithin < 1 {
		return stats.AnovaResult{}, core.NewInsufficientDataError("anova", len(names)+1, total)
	}

	msWithin := ssWithin / float64(dfWithin)
	if msWithin == 0 {
		return stats.AnovaResult{}, core.ErrZeroVariance
	}

	f := (ssBetween / float64(dfBetween)) / msWithin
	fDist := distuv.F{D1: float64(dfBetween), D2: float64(dfWithin)}
	p := 1 - fDist.CDF(f)

	return stats.AnovaResult{
		FStat:      f,
		PValue:     p,
		DFBetween:  dfBetween,
		DFWithin:   dfWithin,
		GroupCount: len(names),
	}, nil
}

// partitionByGroup splits records into per-group value slices, dropping rows
// with a missing group key or a missing/NaN value. Group names come back
// sorted so downstream tables are deterministic.
func partitionByGroup(records []quality.SampleRecord, valueField, groupField string) ([]string, map[string][]float64) {
	groups := make(map[string][]float64)
	for _, r := range records {
		key := r.GroupKey(groupField)
		if key == "" {
			continue
		}
		v, ok := r.CQA(valueField)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], v)
	}

	names := make([]string, 0, len(groups))
	for name, vals := range groups {
		if len(vals) == 0 {
			delete(groups, name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
