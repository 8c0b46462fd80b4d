package verification

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"edueasy/internal/identity"
	"edueasy/internal/platform/metrics"
	"edueasy/internal/ratelimit"
	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
	dErrors "edueasy/pkg/domain-errors"
	"edueasy/pkg/platform/sentinel"
	"edueasy/pkg/requestcontext"
)

// Allocator issues tracking IDs for verified applicants.
type Allocator interface {
	Allocate(ctx context.Context, userID id.UserID) (tracking.ID, error)
}

// Service runs the verification workflow.
type Service struct {
	records   RecordStore
	allocator Allocator
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimiter throttles attempts per user. Without it every attempt is
// admitted.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func New(records RecordStore, allocator Allocator, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if allocator == nil {
		return nil, errors.New("allocator is required")
	}

	s := &Service{
		records:   records,
		allocator: allocator,
		tracer:    otel.Tracer("edueasy/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify validates the candidate national ID and, when it passes, allocates a
// tracking ID and persists the verification record. An invalid ID is a normal
// Result, not an error; errors mean the attempt itself could not complete.
//
// The raw national ID is never stored. Only the last four digits and a hash
// survive in the record.
func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Verify")
	defer span.End()

	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, req.UserID.String()); err != nil {
			if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeRateLimited) {
				s.metrics.RateLimitRejections.Inc()
			}
			return nil, err
		}
	}

	outcome := identity.Validate(req.CandidateID)
	if !outcome.Valid {
		// Only failures charge the attempt budget. Valid attempts, including
		// retry-safe re-verification, pass through uncounted.
		if s.limiter != nil {
			s.limiter.RecordFailure(ctx, req.UserID.String())
		}
		span.SetAttributes(attribute.String("verification.outcome", string(outcome.Reason)))
		if s.metrics != nil {
			s.metrics.ObserveVerification(string(outcome.Reason))
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "verification rejected",
				"user_id", req.UserID,
				"reason", outcome.Reason,
			)
		}
		return &Result{Valid: false, Reason: outcome.Reason}, nil
	}

	if existing, err := s.records.Get(ctx, req.UserID); err == nil {
		// Idempotent success: re-verifying with a matching ID returns the
		// original tracking ID; a different ID is a conflict.
		if existing.IDHash != identity.Hash(req.CandidateID) {
			return nil, dErrors.New(dErrors.CodeConflict, "user already verified with a different national id")
		}
		span.SetAttributes(attribute.String("verification.outcome", "already_verified"))
		if s.metrics != nil {
			s.metrics.ObserveVerification("already_verified")
		}
		return &Result{
			Valid:      true,
			TrackingID: existing.TrackingID,
			IDLast4:    existing.IDLast4,
		}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing verification")
	}

	trackingID, err := s.allocator.Allocate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	record := Record{
		UserID:     req.UserID,
		IDLast4:    identity.Last4(req.CandidateID),
		IDHash:     identity.Hash(req.CandidateID),
		TrackingID: trackingID,
		VerifiedAt: requestcontext.Now(ctx),
	}
	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "user already verified")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification record")
	}

	span.SetAttributes(attribute.String("verification.outcome", "valid"))
	if s.metrics != nil {
		s.metrics.ObserveVerification("valid")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "applicant verified",
			"user_id", req.UserID,
			"tracking_id", trackingID,
		)
	}

	return &Result{
		Valid:      true,
		TrackingID: trackingID,
		IDLast4:    record.IDLast4,
	}, nil
}
