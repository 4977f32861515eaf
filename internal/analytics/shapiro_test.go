package analytics

import (
	"strings"
	"testing"

	"veritas/domain/quality"
)

// blomScores20 are expected normal order statistics for n=20, i.e. a sample
// drawn exactly at its theoretical quantiles. Shapiro-Wilk should score it
// as close to perfectly normal as the approximation allows.
var blomScores20 = []float64{
	-1.867, -1.408, -1.131, -0.921, -0.745, -0.590, -0.448, -0.315, -0.187, -0.062,
	0.062, 0.187, 0.315, 0.448, 0.590, 0.745, 0.921, 1.131, 1.408, 1.867,
}

func TestPerformNormalityTest_NormalSample(t *testing.T) {
	result := PerformNormalityTest(blomScores20)
	if !result.Tested() {
		t.Fatalf("expected test to run, conclusion: %s", result.Conclusion)
	}
	if *result.Statistic < 0.95 {
		t.Errorf("W = %.4f, want close to 1 for quantile-perfect data", *result.Statistic)
	}
	if *result.PValue <= 0.05 {
		t.Errorf("p = %.4f, should not reject normality", *result.PValue)
	}
	if result.Conclusion != "Data appears normal (p > 0.05)." {
		t.Errorf("unexpected conclusion: %q", result.Conclusion)
	}
}

func TestPerformNormalityTest_SkewedSample(t *testing.T) {
	// Heavily right-skewed, roughly geometric growth.
	skewed := []float64{1, 1, 1, 1, 2, 2, 2, 3, 3, 4, 5, 7, 10, 15, 25, 50, 100, 200, 400, 800}

	result := PerformNormalityTest(skewed)
	if !result.Tested() {
		t.Fatalf("expected test to run, conclusion: %s", result.Conclusion)
	}
	if *result.PValue > 0.05 {
		t.Errorf("p = %.4f, strongly skewed data should reject normality", *result.PValue)
	}
	if result.Conclusion != "Data is likely non-normal (p <= 0.05)." {
		t.Errorf("unexpected conclusion: %q", result.Conclusion)
	}
}

func TestPerformNormalityTest_SmallSampleBranches(t *testing.T) {
	// n=3 exact branch and the 4..11 log-gamma branch both return a
	// usable p-value.
	for _, sample := range [][]float64{
		{9.8, 10.0, 10.3},
		{9.8, 9.9, 10.0, 10.1, 10.2, 10.35},
	} {
		result := PerformNormalityTest(sample)
		if !result.Tested() {
			t.Fatalf("n=%d should be tested, conclusion: %s", len(sample), result.Conclusion)
		}
		if *result.PValue < 0 || *result.PValue > 1 {
			t.Errorf("n=%d: p out of range: %.4f", len(sample), *result.PValue)
		}
	}
}

func TestPerformNormalityTest_SoftFailures(t *testing.T) {
	t.Run("too few values", func(t *testing.T) {
		result := PerformNormalityTest([]float64{10.0, 10.1})
		if result.Tested() {
			t.Error("two values should soft-fail, not run the test")
		}
		if !strings.Contains(result.Conclusion, "Not enough data") {
			t.Errorf("unexpected conclusion: %q", result.Conclusion)
		}
	})

	t.Run("zero variance", func(t *testing.T) {
		result := PerformNormalityTest([]float64{10, 10, 10, 10})
		if result.Tested() {
			t.Error("constant sample should soft-fail")
		}
		if !strings.Contains(result.Conclusion, "identical") {
			t.Errorf("unexpected conclusion: %q", result.Conclusion)
		}
	})

	t.Run("empty", func(t *testing.T) {
		result := PerformNormalityTest(nil)
		if result.Tested() {
			t.Error("empty sample should soft-fail")
		}
	})
}

func TestNormalityValues(t *testing.T) {
	records := []quality.SampleRecord{
		{SampleID: "S-1", CQAs: map[string]float64{quality.CQAPurity: 99.1}},
		{SampleID: "S-2", CQAs: map[string]float64{quality.CQABioactivity: 101}},
		{SampleID: "S-3", CQAs: map[string]float64{quality.CQAPurity: 99.4}},
	}

	values, err := NormalityValues(records, quality.CQAPurity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 || values[0] != 99.1 || values[1] != 99.4 {
		t.Errorf("unexpected values: %v", values)
	}

	if _, err := NormalityValues(records, ""); err == nil {
		t.Error("empty field should error")
	}
}
