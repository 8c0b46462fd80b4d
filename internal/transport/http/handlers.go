package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"edueasy/internal/tracking"
	"edueasy/internal/verification"
	id "edueasy/pkg/domain"
	dErrors "edueasy/pkg/domain-errors"
	"edueasy/pkg/platform/httputil"
	"edueasy/pkg/requestcontext"
)

type verifyRequest struct {
	UserID     string `json:"user_id"`
	NationalID string `json:"national_id"`
}

type verifyResponse struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	TrackingID string `json:"tracking_id,omitempty"`
	IDLast4    string `json:"id_last4,omitempty"`
}

func validateVerifyRequest(req verifyRequest) error {
	if !govalidator.IsUUID(req.UserID) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user_id")
	}
	if !govalidator.StringLength(req.NationalID, "1", "64") {
		return dErrors.New(dErrors.CodeInvalidInput, "national_id is required")
	}
	return nil
}

// handleVerify runs one verification attempt. Surrounding whitespace on the
// national ID is trimmed here; the validator itself accepts nothing else.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[verifyRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.NationalID = strings.TrimSpace(req.NationalID)
	if err := validateVerifyRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifier.Verify(ctx, verification.Request{
		UserID:      userID,
		CandidateID: req.NationalID,
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal && h.logger != nil {
			h.logger.ErrorContext(ctx, "verification failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, verifyResponse{
		Valid:      result.Valid,
		Reason:     string(result.Reason),
		TrackingID: result.TrackingID.String(),
		IDLast4:    result.IDLast4,
	})
}

type peekResponse struct {
	TrackingID string `json:"tracking_id"`
}

// handlePeekNext previews the next automatic tracking ID without consuming it.
func (h *Handler) handlePeekNext(w http.ResponseWriter, r *http.Request) {
	next, err := h.allocator.PeekNext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, peekResponse{TrackingID: next.String()})
}

type assignRequest struct {
	UserID     string `json:"user_id"`
	TrackingID string `json:"tracking_id"`
}

func validateAssignRequest(req assignRequest) error {
	if !govalidator.IsUUID(req.UserID) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user_id")
	}
	if !govalidator.StringLength(req.TrackingID, "1", "32") {
		return dErrors.New(dErrors.CodeInvalidInput, "tracking_id is required")
	}
	return nil
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[assignRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validateAssignRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.allocator.AssignManually(ctx, userID, req.TrackingID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type auditEntryResponse struct {
	TrackingID string    `json:"tracking_id"`
	UserID     string    `json:"user_id"`
	Method     string    `json:"method"`
	ActorID    string    `json:"actor_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	trackingID, err := tracking.Parse(chi.URLParam(r, "trackingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.auditor.List(r.Context(), trackingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(entries) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no audit entries for tracking id"))
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			TrackingID: e.TrackingID.String(),
			UserID:     e.UserID.String(),
			Method:     string(e.Method),
			ActorID:    e.ActorID,
			RequestID:  e.RequestID,
			Timestamp:  e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
