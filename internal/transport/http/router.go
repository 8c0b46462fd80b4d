// Package httptransport is the thin HTTP layer. Handlers validate and decode,
// delegate to the domain services, and translate domain errors; they hold no
// business logic of their own.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edueasy/internal/audit"
	"edueasy/internal/auth"
	"edueasy/internal/tracking"
	"edueasy/internal/tracking/service"
	"edueasy/internal/verification"
)

// Auditor exposes the audit trail reads the admin surface needs.
type Auditor interface {
	List(ctx context.Context, trackingID tracking.ID) ([]audit.Entry, error)
}

// Handler carries the wired services for all endpoints.
type Handler struct {
	verifier  *verification.Service
	allocator *service.Service
	auditor   Auditor
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewHandler(
	verifier *verification.Service,
	allocator *service.Service,
	auditor Auditor,
	tokens *auth.TokenService,
	logger *slog.Logger) (*Handler, error) {
	if verifier == nil || allocator == nil || auditor == nil {
		return nil, errors.New("verifier, allocator and auditor are required")
	}
	return &Handler{
		verifier:  verifier,
		allocator: allocator,
		auditor:   auditor,
		tokens:    tokens,
		logger:    logger,
	}, nil
}

// Router wires all routes. The admin group requires a bearer token with the
// admin role; when no token service is configured those routes are absent
// rather than open.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(h.logger))
	r.Use(RequestContext)

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/verify", h.handleVerify)

	if h.tokens != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(h.tokens, h.logger))
			r.Get("/tracking/next", h.handlePeekNext)
			r.Post("/tracking/assign", h.handleAssign)
			r.Get("/audit/{trackingID}", h.handleAuditTrail)
		})
	}

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
