package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/internal/analytics"
	"veritas/internal/errors"
	"veritas/internal/report"
)

type capabilityRequest struct {
	Values []float64 `json:"values"`
	LSL    *float64  `json:"lsl"`
	USL    *float64  `json:"usl"`
}

func (s *Server) handleCapability(w http.ResponseWriter, r *http.Request) {
	var req capabilityRequest
	if !decode(w, r, &req) {
		return
	}
	cpk, err := analytics.CalculateCpk(req.Values, quality.SpecLimit{LSL: req.LSL, USL: req.USL})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"cpk": cpk})
}

type sweepRequest struct {
	CQAs []string `json:"cqas"`
}

func (s *Server) handleCapabilitySweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.CQAs) == 0 {
		req.CQAs = []string{quality.CQAPurity, quality.CQAAggregate, quality.CQAMainImpurity, quality.CQABioactivity}
	}
	summaries, err := s.svc.CapabilitySweep(r.Context(), s.repo.HPLCRecords(), req.CQAs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type normalityRequest struct {
	Values []float64 `json:"values"`
}

func (s *Server) handleNormality(w http.ResponseWriter, r *http.Request) {
	var req normalityRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, analytics.PerformNormalityTest(req.Values))
}

type groupedRequest struct {
	Records    []quality.SampleRecord `json:"records"`
	ValueField string                 `json:"value_field"`
	GroupField string                 `json:"group_field"`
}

func (s *Server) handleANOVA(w http.ResponseWriter, r *http.Request) {
	var req groupedRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := analytics.PerformANOVA(req.Records, req.ValueField, req.GroupField)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTukey(w http.ResponseWriter, r *http.Request) {
	var req groupedRequest
	if !decode(w, r, &req) {
		return
	}
	table, err := analytics.PerformTukeyHSD(req.Records, req.ValueField, req.GroupField)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleComparability(w http.ResponseWriter, r *http.Request) {
	var req groupedRequest
	if !decode(w, r, &req) {
		return
	}
	records := req.Records
	if len(records) == 0 {
		records = s.repo.HPLCRecords()
	}
	result, err := s.svc.AssessComparability(r.Context(), records, req.ValueField, req.GroupField)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type stabilityRequest struct {
	Records   []quality.StabilityRecord `json:"records"`
	Assay     string                    `json:"assay"`
	UsePooled bool                      `json:"use_pooled"`
}

func (s *Server) stabilityRecords(req stabilityRequest) []quality.StabilityRecord {
	if len(req.Records) > 0 {
		return req.Records
	}
	return s.repo.StabilityRecords()
}

func (s *Server) handlePoolability(w http.ResponseWriter, r *http.Request) {
	var req stabilityRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := analytics.TestStabilityPoolability(s.stabilityRecords(req), req.Assay)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var req stabilityRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := analytics.CalculateStabilityProjection(s.stabilityRecords(req), req.Assay, req.UsePooled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStabilityAssessment(w http.ResponseWriter, r *http.Request) {
	var req stabilityRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.svc.AssessStability(r.Context(), s.stabilityRecords(req), req.Assay)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type qcScanRequest struct {
	Records        []quality.SampleRecord `json:"records"`
	Rules          *quality.QCRuleConfig  `json:"rules"`
	User           string                 `json:"user"`
	FileDeviations bool                   `json:"file_deviations"`
}

func (s *Server) handleQCScan(w http.ResponseWriter, r *http.Request) {
	var req qcScanRequest
	if !decode(w, r, &req) {
		return
	}
	records := req.Records
	if len(records) == 0 {
		records = s.repo.HPLCRecords()
	}
	rules := quality.DefaultQCRuleConfig()
	if req.Rules != nil {
		rules = *req.Rules
	}
	if req.User == "" {
		req.User = "system"
	}

	review, err := s.svc.ReviewDataIntegrity(r.Context(), records, rules, req.User, req.FileDeviations)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

type anomalyRequest struct {
	Records       []quality.SampleRecord `json:"records"`
	Fields        []string               `json:"fields"`
	Contamination float64                `json:"contamination"`
	Seed          *int64                 `json:"seed"`
}

func (s *Server) handleAnomaly(w http.ResponseWriter, r *http.Request) {
	var req anomalyRequest
	if !decode(w, r, &req) {
		return
	}
	records := req.Records
	if len(records) == 0 {
		records = s.repo.HPLCRecords()
	}
	if len(req.Fields) == 0 {
		req.Fields = []string{quality.CQAPurity, quality.CQAMainImpurity, quality.CQABioactivity}
	}
	if req.Contamination == 0 {
		req.Contamination = s.cfg.Analytics.Contamination
	}
	seed := s.cfg.Analytics.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	result, err := analytics.RunAnomalyDetection(records, req.Fields, req.Contamination, seed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type summaryReportRequest struct {
	Author string `json:"author"`
	Draft  bool   `json:"draft"`
	Format string `json:"format"`
}

func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	var req summaryReportRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Author == "" {
		req.Author = "system"
	}

	records := s.repo.HPLCRecords()
	cqas := []string{quality.CQAPurity, quality.CQAAggregate, quality.CQAMainImpurity, quality.CQABioactivity}
	capability, err := s.svc.CapabilitySweep(r.Context(), records, cqas)
	if err != nil {
		writeError(w, err)
		return
	}
	review, err := s.svc.ReviewDataIntegrity(r.Context(), records, quality.DefaultQCRuleConfig(), req.Author, false)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := report.NewAssembler().BuildSummary(req.Author, req.Draft, capability, review.Discrepancies, s.repo.Deviations())
	s.repo.WriteAuditLog(req.Author, "export_report", "summary report generated", doc.ID.String())

	switch req.Format {
	case "", "json":
		writeJSON(w, http.StatusOK, doc)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(doc.Markdown()))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(doc.HTML())
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="veritas_summary.xlsx"`)
		if err := doc.WriteWorkbook(w); err != nil {
			s.log.Error("workbook export failed: %v", err)
		}
	default:
		writeError(w, core.NewInvalidInputError("format", "must be json, markdown, html, or xlsx"))
	}
}

func (s *Server) handleListDeviations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.repo.Deviations())
}

type deviationUpdateRequest struct {
	Status quality.DeviationStatus `json:"status"`
	User   string                  `json:"user"`
}

func (s *Server) handleUpdateDeviation(w http.ResponseWriter, r *http.Request) {
	var req deviationUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.User == "" {
		req.User = "system"
	}
	id := core.DeviationID(chi.URLParam(r, "id"))
	dev, err := s.svc.UpdateDeviation(r.Context(), id, req.Status, req.User)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.repo.AuditLog())
}

// decode parses the JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body: " + err.Error(), Code: errors.CodeInvalidInput})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the domain error taxonomy to HTTP statuses: caller
// errors are 400, statistically insufficient data is 422, missing
// resources are 404, anything else is 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsCallerError(err):
		status = http.StatusBadRequest
	case core.IsInsufficientData(err):
		status = http.StatusUnprocessableEntity
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case stderrors.Is(err, core.ErrInvalidTransition):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
