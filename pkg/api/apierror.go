// Package api exposes the assessment engine over HTTP. Error responses use
// RFC 7807 Problem Details throughout.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aletheia-ai/aegis/pkg/bias"
	"github.com/aletheia-ai/aegis/pkg/engine"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/profile"
	"github.com/aletheia-ai/aegis/pkg/report"
	"github.com/aletheia-ai/aegis/pkg/scoring"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:    fmt.Sprintf("https://aegis.aletheia.ai/errors/%d", status),
		Title:   title,
		Status:  status,
		Detail:  detail,
		TraceID: w.Header().Get("X-Request-ID"),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteTooManyRequests writes a 429 response with a Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}

// WriteInternal writes a 500 response. The err is logged, never exposed.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteDomainError maps engine and pipeline errors onto problem responses.
// Validation failures carry their full detail; anything unrecognized is a
// 500 with the cause withheld.
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		incomplete *profile.IncompleteProfileError
		badMetric  *bias.InvalidMetricError
		badTier    *scoring.UnknownTierError
		badFW      *report.UnknownFrameworkError
		broken     *ledger.ChainIntegrityError
		unverified *report.UnverifiedLedgerError
	)
	switch {
	case errors.As(err, &incomplete):
		WriteError(w, http.StatusUnprocessableEntity, "Incomplete Profile", incomplete.Error())
	case errors.As(err, &badMetric):
		WriteBadRequest(w, badMetric.Error())
	case errors.Is(err, bias.ErrEmptyDataset):
		WriteBadRequest(w, err.Error())
	case errors.As(err, &badTier):
		WriteBadRequest(w, badTier.Error())
	case errors.As(err, &badFW):
		WriteBadRequest(w, badFW.Error())
	case errors.As(err, &unverified):
		WriteError(w, http.StatusConflict, "Unverified Audit Chain", unverified.Error())
	case errors.As(err, &broken):
		WriteError(w, http.StatusConflict, "Audit Chain Broken", broken.Error())
	case errors.Is(err, engine.ErrRunNotFound), errors.Is(err, ledger.ErrEventNotFound):
		WriteNotFound(w, err.Error())
	default:
		WriteInternal(w, err)
	}
}
