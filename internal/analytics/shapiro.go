package analytics

import (
	"math"
	"sort"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/domain/stats"
)

// PerformNormalityTest runs a Shapiro-Wilk test on the sample. Fewer than
// three non-missing values soft-fails: the result carries nil statistic and
// p-value plus an explanatory conclusion, because the caller must always
// render a status line rather than handle an error branch.
func PerformNormalityTest(values []float64) stats.NormalityResult {
	clean := dropNaN(values)
	if len(clean) < 3 {
		return stats.NormalityResult{
			Conclusion: "Not enough data for a normality test (need at least 3 values).",
		}
	}
	if sampleRange(clean) == 0 {
		return stats.NormalityResult{
			Conclusion: "All values identical; normality is undefined for a zero-variance sample.",
		}
	}

	w, p := shapiroWilk(clean)
	conclusion := "Data is likely non-normal (p <= 0.05)."
	if p > stats.DefaultAlpha {
		conclusion = "Data appears normal (p > 0.05)."
	}
	return stats.NormalityResult{Statistic: &w, PValue: &p, Conclusion: conclusion}
}

// shapiroWilk computes the W statistic and its p-value using Royston's
// AS R94 approximation, valid for 3 <= n <= 5000. The coefficient vector is
// built from expected normal order statistics (Blom scores) with Royston's
// polynomial corrections to the two extreme weights.
func shapiroWilk(sample []float64) (w, p float64) {
	n := len(sample)
	x := make([]float64, n)
	copy(x, sample)
	sort.Float64s(x)

	// Blom approximation to expected normal order statistics.
	m := make([]float64, n)
	ssm := 0.0
	for i := 0; i < n; i++ {
		m[i] = stdNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		ssm += m[i] * m[i]
	}

	a := make([]float64, n)
	rsn := 1 / math.Sqrt(float64(n))
	if n == 3 {
		a[0] = -math.Sqrt2 / 2
		a[2] = math.Sqrt2 / 2
	} else {
		// Royston's corrected extreme weights.
		an := polyval(rsn, m[n-1]/math.Sqrt(ssm), 0.221157, -0.147981, -2.071190, 4.434685, -2.706056)
		a[n-1] = an
		a[0] = -an
		if n <= 5 {
			phi := (ssm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
			for i := 1; i < n-1; i++ {
				a[i] = m[i] / math.Sqrt(phi)
			}
		} else {
			an1 := polyval(rsn, m[n-2]/math.Sqrt(ssm), 0.042981, -0.293762, -1.752461, 5.682633, -3.582633)
			a[n-2] = an1
			a[1] = -an1
			phi := (ssm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
			for i := 2; i < n-2; i++ {
				a[i] = m[i] / math.Sqrt(phi)
			}
		}
	}

	mean := meanOf(x)
	num, den := 0.0, 0.0
	for i := 0; i < n; i++ {
		num += a[i] * x[i]
		den += (x[i] - mean) * (x[i] - mean)
	}
	w = num * num / den
	if w > 1 {
		w = 1
	}

	p = shapiroPValue(w, n)
	return w, p
}

// shapiroPValue maps W to an upper-tail p-value via Royston's normalizing
// transforms: exact for n=3, log-gamma shift for 4<=n<=11, log-normal for
// larger samples.
func shapiroPValue(w float64, n int) float64 {
	switch {
	case n == 3:
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return clamp01(p)
	case n <= 11:
		fn := float64(n)
		g := -2.273 + 0.459*fn
		mu := 0.5440 - 0.39978*fn + 0.025054*fn*fn - 0.0006714*fn*fn*fn
		sigma := math.Exp(1.3822 - 0.77857*fn + 0.062767*fn*fn - 0.0020322*fn*fn*fn)
		arg := g - math.Log(1-w)
		if arg <= 0 {
			return 0
		}
		z := (-math.Log(arg) - mu) / sigma
		return clamp01(stdNormal.Survival(z))
	default:
		u := math.Log(float64(n))
		mu := -1.5861 - 0.31082*u - 0.083751*u*u + 0.0038915*u*u*u
		sigma := math.Exp(-0.4803 - 0.082676*u + 0.0030302*u*u)
		z := (math.Log(1-w) - mu) / sigma
		return clamp01(stdNormal.Survival(z))
	}
}

// polyval evaluates base + c1*u + c2*u^2 + ... for Royston's corrections.
func polyval(u, base float64, coeffs ...float64) float64 {
	out := base
	pow := 1.0
	for _, c := range coeffs {
		pow *= u
		out += c * pow
	}
	return out
}

func sampleRange(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// NormalityValues extracts the named CQA from records for a normality test,
// preserving record order.
func NormalityValues(records []quality.SampleRecord, field string) ([]float64, error) {
	if field == "" {
		return nil, core.NewInvalidInputError("field", "value field required")
	}
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.CQA(field); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
