// Package ratelimit throttles failed verification attempts per user. The
// original platform enforced this as a single-row read/increment at the edge;
// here it is a fixed-window counter behind a store interface so Redis serves
// multi-instance deployments and a map serves tests.
//
// Only failures charge the budget: callers pre-check with Allow, then call
// RecordFailure when the attempt turns out invalid. Valid attempts pass
// through uncounted, so retry-safe re-verification is never throttled.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dErrors "edueasy/pkg/domain-errors"
)

// Store counts hits in the current window. Incr must be atomic: concurrent
// callers observe distinct counts.
type Store interface {
	// Incr increments the counter for key, starting a new window of the given
	// length when none is active, and returns the count within the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)

	// Count returns the counter for key within the active window, 0 when no
	// window is active.
	Count(ctx context.Context, key string) (int64, error)
}

// Limiter applies a fixed-window limit to failed verification attempts.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
	logger *slog.Logger
}

// Option configures the Limiter.
type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New constructs a limiter allowing limit failed attempts per window.
func New(store Store, limit int64, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	l := &Limiter{store: store, limit: limit, window: window}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow reports whether key still has failure budget in the current window.
// It charges nothing. Store failures fail open with a warning: a broken Redis
// must not take identity verification down with it.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	count, err := l.store.Count(ctx, key)
	if err != nil {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
				"key", key,
				"error", err,
			)
		}
		return nil
	}

	if count >= l.limit {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "failed verification attempt limit exceeded",
				"key", key,
				"count", count,
				"limit", l.limit,
			)
		}
		return dErrors.New(dErrors.CodeRateLimited, "too many failed verification attempts, retry later")
	}
	return nil
}

// RecordFailure charges one failed attempt against key's window. Best effort:
// a store failure is logged and otherwise ignored, the same fail-open stance
// as Allow.
func (l *Limiter) RecordFailure(ctx context.Context, key string) {
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		if l.logger != nil {
			l.logger.WarnContext(ctx, "failed to record verification failure",
				"key", key,
				"error", err,
			)
		}
		return
	}
	if count == l.limit && l.logger != nil {
		l.logger.WarnContext(ctx, "verification failure budget exhausted",
			"key", key,
			"limit", l.limit,
		)
	}
}
