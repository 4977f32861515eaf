package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/app"
	"veritas/domain/quality"
	"veritas/internal/config"
	"veritas/internal/repository"
	"veritas/internal/testkit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Port = "0"
	cfg.Server.MetricsEnabled = false
	cfg.Analytics.Alpha = 0.05
	cfg.Analytics.CpkTarget = 1.33
	cfg.Analytics.Contamination = 0.05
	cfg.Analytics.Seed = 42
	cfg.Analytics.SpecLimits = config.DefaultSpecLimits()
	cfg.Data.Samples = 100
	cfg.Data.Seed = 42

	genCfg := testkit.DefaultLIMSConfig()
	genCfg.SampleCount = cfg.Data.Samples
	repo := repository.NewMemoryRepository(testkit.NewLIMSGenerator(genCfg))
	svc := app.NewQualityService(repo, cfg.Analytics.SpecLimits, cfg.Analytics.CpkTarget)

	ts := httptest.NewServer(NewServer(cfg, svc, repo).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCapabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("capable process", func(t *testing.T) {
		lsl, usl := 9.5, 10.5
		resp := postJSON(t, ts, "/api/v1/capability", capabilityRequest{
			Values: []float64{9.9, 10.0, 10.1, 9.8, 10.2, 9.95, 10.05},
			LSL:    &lsl, USL: &usl,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]float64
		decodeBody(t, resp, &body)
		assert.Greater(t, body["cpk"], 1.33)
	})

	t.Run("inverted limits are a caller error", func(t *testing.T) {
		lsl, usl := 10.5, 9.5
		resp := postJSON(t, ts, "/api/v1/capability", capabilityRequest{
			Values: []float64{9.9, 10.0, 10.1}, LSL: &lsl, USL: &usl,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("zero variance is unprocessable", func(t *testing.T) {
		lsl, usl := 9.5, 10.5
		resp := postJSON(t, ts, "/api/v1/capability", capabilityRequest{
			Values: []float64{10, 10, 10}, LSL: &lsl, USL: &usl,
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var body errorBody
		decodeBody(t, resp, &body)
		assert.Equal(t, "INSUFFICIENT_DATA", body.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/capability", "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCapabilitySweepEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts, "/api/v1/capability/sweep", sweepRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []app.CapabilitySummary
	decodeBody(t, resp, &summaries)
	require.Len(t, summaries, 4)
	for _, s := range summaries {
		assert.NotZero(t, s.N, "CQA %s has no data", s.CQA)
	}
}

func TestAnovaEndpoint(t *testing.T) {
	ts := newTestServer(t)

	records := []quality.SampleRecord{
		{SampleID: "A-1", BatchID: "A", CQAs: map[string]float64{quality.CQAPurity: 10}},
		{SampleID: "A-2", BatchID: "A", CQAs: map[string]float64{quality.CQAPurity: 11}},
		{SampleID: "A-3", BatchID: "A", CQAs: map[string]float64{quality.CQAPurity: 10.5}},
		{SampleID: "A-4", BatchID: "A", CQAs: map[string]float64{quality.CQAPurity: 10.2}},
		{SampleID: "B-1", BatchID: "B", CQAs: map[string]float64{quality.CQAPurity: 20}},
		{SampleID: "B-2", BatchID: "B", CQAs: map[string]float64{quality.CQAPurity: 21}},
		{SampleID: "B-3", BatchID: "B", CQAs: map[string]float64{quality.CQAPurity: 20.5}},
		{SampleID: "B-4", BatchID: "B", CQAs: map[string]float64{quality.CQAPurity: 20.8}},
	}

	t.Run("significant", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/anova", groupedRequest{
			Records: records, ValueField: quality.CQAPurity, GroupField: quality.FieldBatchID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			PValue float64 `json:"p_value"`
		}
		decodeBody(t, resp, &body)
		assert.Less(t, body.PValue, 0.05)
	})

	t.Run("single group rejected", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/anova", groupedRequest{
			Records: records[:4], ValueField: quality.CQAPurity, GroupField: quality.FieldBatchID,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestComparabilityEndpoint_UsesRepositoryByDefault(t *testing.T) {
	ts := newTestServer(t)

	// No records in the request: the seeded HPLC dataset backs the run,
	// grouped by instrument where HPLC-03 carries a planted drift.
	resp := postJSON(t, ts, "/api/v1/comparability", groupedRequest{
		ValueField: quality.CQAPurity, GroupField: quality.FieldInstrumentID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Anova struct {
			PValue     float64 `json:"p_value"`
			GroupCount int     `json:"group_count"`
		} `json:"anova"`
		TukeyTriggered bool `json:"tukey_triggered"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 4, body.Anova.GroupCount)
	assert.Less(t, body.Anova.PValue, 0.05)
	assert.True(t, body.TukeyTriggered)
}

func TestStabilityEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("assessment over seeded program", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/stability/assessment", stabilityRequest{Assay: quality.CQAPurity})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Projection struct {
				Slope float64 `json:"slope"`
				Valid bool    `json:"valid"`
			} `json:"projection"`
		}
		decodeBody(t, resp, &body)
		assert.True(t, body.Projection.Valid)
		assert.Negative(t, body.Projection.Slope, "stability program degrades over time")
	})

	t.Run("explicit records", func(t *testing.T) {
		records := []quality.StabilityRecord{
			{LotID: "L1", TimepointMonths: 0, Assays: map[string]float64{quality.CQAPurity: 99.5}},
			{LotID: "L1", TimepointMonths: 6, Assays: map[string]float64{quality.CQAPurity: 99.2}},
			{LotID: "L1", TimepointMonths: 12, Assays: map[string]float64{quality.CQAPurity: 98.9}},
		}
		resp := postJSON(t, ts, "/api/v1/stability/projection", stabilityRequest{
			Records: records, Assay: quality.CQAPurity, UsePooled: true,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Slope float64 `json:"slope"`
		}
		decodeBody(t, resp, &body)
		assert.InDelta(t, -0.05, body.Slope, 1e-9)
	})
}

func TestQCScanEndpoint(t *testing.T) {
	ts := newTestServer(t)

	records := []quality.SampleRecord{
		{SampleID: "S-OOS", BatchID: "B-1", CQAs: map[string]float64{
			quality.CQAPurity: 90.0, quality.CQABioactivity: 100,
		}},
	}
	resp := postJSON(t, ts, "/api/v1/qc/scan", qcScanRequest{
		Records: records, User: "jsmith", FileDeviations: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Discrepancies   []quality.Discrepancy `json:"discrepancies"`
		FiledDeviations []quality.Deviation   `json:"filed_deviations"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Discrepancies, 1)
	require.Len(t, body.FiledDeviations, 1)
	assert.Equal(t, "S-OOS", body.FiledDeviations[0].LinkedRecord)
}

func TestAnomalyEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("seeded dataset with defaults", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/anomaly", anomalyRequest{})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Labels []string  `json:"labels"`
			Scores []float64 `json:"scores"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, len(body.Labels), len(body.Scores))
		assert.Equal(t, 5, countOutliers(body.Labels), "5%% of 100 fitted rows")
	})

	t.Run("bad contamination", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/anomaly", anomalyRequest{Contamination: 0.9})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func countOutliers(labels []string) int {
	n := 0
	for _, l := range labels {
		if l == "outlier" {
			n++
		}
	}
	return n
}

func TestDeviationEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/deviations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var devs []quality.Deviation
	decodeBody(t, resp, &devs)
	require.NotEmpty(t, devs)

	t.Run("valid transition", func(t *testing.T) {
		payload, _ := json.Marshal(deviationUpdateRequest{Status: quality.StatusInProgress, User: "jsmith"})
		req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/deviations/DEV-001", bytes.NewReader(payload))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var dev quality.Deviation
		decodeBody(t, resp, &dev)
		assert.Equal(t, quality.StatusInProgress, dev.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		payload, _ := json.Marshal(deviationUpdateRequest{Status: quality.StatusOpen})
		req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/deviations/DEV-999", bytes.NewReader(payload))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSummaryReportEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("json", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/reports/summary", summaryReportRequest{Author: "jsmith"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Title    string `json:"title"`
			Sections []struct {
				Heading string `json:"heading"`
			} `json:"sections"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, "VERITAS - Automated Data Summary Report", body.Title)
		assert.NotEmpty(t, body.Sections)
	})

	t.Run("markdown", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/reports/summary", summaryReportRequest{Author: "jsmith", Format: "markdown"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	})

	t.Run("unknown format", func(t *testing.T) {
		resp := postJSON(t, ts, "/api/v1/reports/summary", summaryReportRequest{Author: "jsmith", Format: "pdf"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/audit")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []quality.AuditEntry
	decodeBody(t, resp, &entries)
	assert.NotEmpty(t, entries)
}
