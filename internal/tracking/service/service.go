// Package service implements tracking ID allocation: the atomic
// counter-backed automatic path and the administrative manual path, both
// recorded in the append-only audit trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"edueasy/internal/audit"
	"edueasy/internal/platform/metrics"
	"edueasy/internal/tracking"
	"edueasy/internal/tracking/store"
	id "edueasy/pkg/domain"
	dErrors "edueasy/pkg/domain-errors"
	"edueasy/pkg/platform/sentinel"
	"edueasy/pkg/requestcontext"
)

// AuditPublisher is the fail-closed audit sink: an allocation is not
// successful until its entry is appended.
type AuditPublisher interface {
	Emit(ctx context.Context, e audit.Entry) error
}

// Service allocates tracking IDs. Uniqueness rests on two guarantees it never
// works around: the counter's atomic increment and the assignment store's
// uniqueness constraints.
type Service struct {
	counter     store.CounterStore
	assignments store.AssignmentStore
	auditor     AuditPublisher
	txRun       TxRunner
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// TxRunner executes fn atomically. With Postgres stores this wraps the
// assignment write and audit append in one transaction; the default runner
// just calls fn, which the memory stores accept for tests and dev mode.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(run TxRunner) Option {
	return func(s *Service) { s.txRun = run }
}

// New constructs the allocator. Counter, assignment store, and auditor are
// all required: there is no meaningful allocation without any of them.
func New(counter store.CounterStore, assignments store.AssignmentStore, auditor AuditPublisher, opts ...Option) (*Service, error) {
	if counter == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if assignments == nil {
		return nil, fmt.Errorf("assignment store is required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}

	svc := &Service{
		counter:     counter,
		assignments: assignments,
		auditor:     auditor,
		txRun: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// PeekNext returns what the next tracking ID would be without consuming it.
// The value is a hint: under concurrent allocation it may be stale by the
// time an allocation happens, and no reservation is implied.
func (s *Service) PeekNext(ctx context.Context) (tracking.ID, error) {
	current, err := s.counter.Current(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tracking counter")
	}
	next := current + 1
	if next > tracking.MaxSequence {
		return "", dErrors.Wrap(sentinel.ErrExhausted, dErrors.CodeInternal, "tracking sequence exhausted")
	}
	return tracking.Format(requestcontext.Now(ctx), next), nil
}

// Allocate atomically draws the next sequence value, persists the assignment
// for userID, and appends the audit entry. Not idempotent: a second call for
// the same user is rejected with a conflict rather than returning the first
// ID, so callers must not retry a successful allocation.
//
// A sequence value drawn by an attempt that subsequently fails (assignment
// conflict, audit failure) is burned: it is never issued to anyone else.
func (s *Service) Allocate(ctx context.Context, userID id.UserID) (tracking.ID, error) {
	start := time.Now()

	if userID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	if _, err := s.assignments.Get(ctx, userID); err == nil {
		return "", dErrors.New(dErrors.CodeConflict, "user already has a tracking id")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing assignment")
	}

	seq, err := s.counter.Next(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance tracking counter")
	}
	if seq > tracking.MaxSequence {
		// Hard operational limit. Surfaced loudly, never wrapped away.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "tracking sequence exhausted", "sequence", seq)
		}
		return "", dErrors.Wrap(sentinel.ErrExhausted, dErrors.CodeInternal, "tracking sequence exhausted")
	}

	trackingID := tracking.Format(requestcontext.Now(ctx), seq)

	// Assignment and audit entry commit or fail together; failing either way
	// burns seq, which is acceptable and the reason sequences may have gaps.
	err = s.txRun(ctx, func(ctx context.Context) error {
		assignment := tracking.Assignment{
			UserID:     userID,
			TrackingID: trackingID,
			Method:     tracking.MethodAutomatic,
			AssignedAt: requestcontext.Now(ctx),
		}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "user already has a tracking id")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist assignment")
		}

		// Fail closed: without the audit entry the allocation does not count.
		return s.auditor.Emit(ctx, audit.Entry{
			TrackingID: trackingID,
			UserID:     userID,
			Method:     tracking.MethodAutomatic,
			RequestID:  requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return "", err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "tracking id allocated",
			"user_id", userID,
			"tracking_id", trackingID,
			"sequence", seq,
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveAllocation(time.Since(start))
	}

	return trackingID, nil
}

// AssignManually force-assigns a pre-validated tracking ID to a user, for
// migrations and backfills. The shared counter is advanced to cover the
// manual sequence so a later automatic allocation can never collide with it.
func (s *Service) AssignManually(ctx context.Context, userID id.UserID, raw string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	trackingID, err := tracking.Parse(raw)
	if err != nil {
		return err
	}

	if _, err := s.assignments.Get(ctx, userID); err == nil {
		return dErrors.New(dErrors.CodeConflict, "user already has a tracking id")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing assignment")
	}

	err = s.txRun(ctx, func(ctx context.Context) error {
		assignment := tracking.Assignment{
			UserID:     userID,
			TrackingID: trackingID,
			Method:     tracking.MethodManual,
			AssignedAt: requestcontext.Now(ctx),
		}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "tracking id already assigned")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist assignment")
		}

		// Cover the manual sequence so automatic allocation skips past it.
		if err := s.counter.AdvanceTo(ctx, trackingID.Sequence()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance tracking counter")
		}

		return s.auditor.Emit(ctx, audit.Entry{
			TrackingID: trackingID,
			UserID:     userID,
			Method:     tracking.MethodManual,
			ActorID:    requestcontext.ActorID(ctx),
			RequestID:  requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "tracking id assigned manually",
			"user_id", userID,
			"tracking_id", trackingID,
			"actor_id", requestcontext.ActorID(ctx),
		)
	}
	if s.metrics != nil {
		s.metrics.ManualAssignments.Inc()
	}

	return nil
}
