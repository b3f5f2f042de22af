package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/engine"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/report"
)

// Service exposes assessment runs over HTTP.
type Service struct {
	engine   *engine.Engine
	exporter *ledger.Exporter
}

func NewService(e *engine.Engine, exporter *ledger.Exporter) *Service {
	return &Service{engine: e, exporter: exporter}
}

// HandleSubmit handles POST /v1/assessments. The profile document is kept as
// raw JSON and run through schema validation before the pipeline sees it, so
// unknown fields and out-of-vocabulary enum values are rejected at the edge.
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	var wire struct {
		Profile             json.RawMessage      `json:"profile"`
		Actor               string               `json:"actor"`
		Outcomes            []bias.OutcomeRecord `json:"outcomes"`
		ProtectedAttributes []string             `json:"protected_attributes"`
		FairnessMetrics     []string             `json:"fairness_metrics"`
		SignificanceLevel   float64              `json:"significance_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if len(wire.Profile) == 0 {
		WriteBadRequest(w, "Missing required field: profile")
		return
	}

	p, err := profile.Parse(wire.Profile)
	if err != nil {
		var incomplete *profile.IncompleteProfileError
		if errors.As(err, &incomplete) {
			WriteDomainError(w, err)
		} else {
			WriteBadRequest(w, err.Error())
		}
		return
	}

	req := engine.SubmitRequest{
		Profile:             p,
		Actor:               wire.Actor,
		Outcomes:            wire.Outcomes,
		ProtectedAttributes: wire.ProtectedAttributes,
		FairnessMetrics:     wire.FairnessMetrics,
		SignificanceLevel:   wire.SignificanceLevel,
	}
	if req.Actor == "" {
		req.Actor = ActorFromContext(r.Context())
	}

	run, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// HandleListRuns handles GET /v1/assessments.
func (s *Service) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.engine.ListRuns()})
}

// HandleGetRun handles GET /v1/assessments/{id}.
func (s *Service) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.GetRun(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleClassification handles GET /v1/assessments/{id}/classification.
func (s *Service) HandleClassification(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.GetRun(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if run.Classification == nil {
		WriteNotFound(w, "run has no classification result")
		return
	}
	writeJSON(w, http.StatusOK, run.Classification)
}

// HandleScore handles GET /v1/assessments/{id}/score.
func (s *Service) HandleScore(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.GetRun(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if run.RiskScore == nil {
		WriteNotFound(w, "run has no risk score")
		return
	}
	writeJSON(w, http.StatusOK, run.RiskScore)
}

// HandleBias handles GET /v1/assessments/{id}/bias.
func (s *Service) HandleBias(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.GetRun(r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if run.Bias == nil {
		WriteNotFound(w, "run has no bias analysis")
		return
	}
	writeJSON(w, http.StatusOK, run.Bias)
}

// HandleReport handles GET /v1/assessments/{id}/reports/{framework}.
// An optional as_of query parameter pins the report to a ledger sequence.
func (s *Service) HandleReport(w http.ResponseWriter, r *http.Request) {
	var asOf uint64
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			WriteBadRequest(w, "as_of must be a positive integer")
			return
		}
		asOf = parsed
	}

	rep, err := s.engine.Report(r.Context(), r.PathValue("id"),
		report.Framework(r.PathValue("framework")), asOf)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	canonical, hash, err := rep.Canonical()
	if err != nil {
		WriteInternal(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Report-Hash", hash)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(canonical)
}

// HandleAuditTrail handles GET /v1/assessments/{id}/audit.
func (s *Service) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	var from, to uint64
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = strconv.ParseUint(v, 10, 64)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, _ = strconv.ParseUint(v, 10, 64)
	}

	events, err := s.engine.AuditTrail(r.Context(), runID, from, to)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	verifyErr := s.engine.Verify(r.Context(), runID)
	resp := map[string]any{
		"run_id":   runID,
		"events":   events,
		"verified": verifyErr == nil,
	}
	if verifyErr != nil {
		resp["verification_error"] = verifyErr.Error()
	}
	if stats, err := s.engine.AuditStats(r.Context(), runID); err == nil {
		resp["stats"] = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRedact handles POST /v1/assessments/{id}/audit/{seq}/redact.
func (s *Service) HandleRedact(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(r.PathValue("seq"), 10, 64)
	if err != nil || seq == 0 {
		WriteBadRequest(w, "sequence must be a positive integer")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Reason == "" {
		WriteBadRequest(w, "Missing required field: reason")
		return
	}

	event, err := s.engine.Redact(r.Context(), r.PathValue("id"), seq,
		ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleExport handles GET /v1/assessments/{id}/export.
func (s *Service) HandleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		WriteError(w, http.StatusServiceUnavailable, "Export Unavailable", "export signing is not configured")
		return
	}
	runID := r.PathValue("id")
	if _, err := s.engine.GetRun(runID); err != nil {
		WriteDomainError(w, err)
		return
	}

	bundle, err := s.exporter.Export(r.Context(), runID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="evidence-`+runID+`.zip"`)
	w.Header().Set("X-Export-Checksum", bundle.Checksum)
	w.Header().Set("X-Export-Signature", bundle.Signature)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bundle.Archive)
}

// HandleHealth handles GET /healthz.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"rule_set_version": s.engine.RuleSetVersion(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
