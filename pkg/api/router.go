package api

import (
	"log/slog"
	"net/http"
)

// RouterOptions configures the middleware chain around the service routes.
type RouterOptions struct {
	Logger      *slog.Logger
	JWTSecret   []byte
	RateLimiter *GlobalRateLimiter
	Idempotency IdempotencyStore
}

// NewRouter assembles the HTTP routes with request ID, access logging, rate
// limiting, authentication, and idempotent replay applied in that order.
func NewRouter(s *Service, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.HandleFunc("POST /v1/assessments", s.HandleSubmit)
	mux.HandleFunc("GET /v1/assessments", s.HandleListRuns)
	mux.HandleFunc("GET /v1/assessments/{id}", s.HandleGetRun)
	mux.HandleFunc("GET /v1/assessments/{id}/classification", s.HandleClassification)
	mux.HandleFunc("GET /v1/assessments/{id}/score", s.HandleScore)
	mux.HandleFunc("GET /v1/assessments/{id}/bias", s.HandleBias)
	mux.HandleFunc("GET /v1/assessments/{id}/reports/{framework}", s.HandleReport)
	mux.HandleFunc("GET /v1/assessments/{id}/audit", s.HandleAuditTrail)
	mux.HandleFunc("POST /v1/assessments/{id}/audit/{seq}/redact", s.HandleRedact)
	mux.HandleFunc("GET /v1/assessments/{id}/export", s.HandleExport)

	var handler http.Handler = mux
	if opts.Idempotency != nil {
		handler = Idempotency(opts.Idempotency)(handler)
	}
	handler = JWTAuth(opts.JWTSecret)(handler)
	if opts.RateLimiter != nil {
		handler = opts.RateLimiter.Middleware(handler)
	}
	handler = AccessLog(opts.Logger)(handler)
	handler = RequestID(handler)
	return handler
}
