// Package store provides the durable state behind tracking ID allocation: the
// shared sequence counter and the per-user assignment records.
package store

import (
	"context"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
)

// CounterStore is the atomic increment primitive required by the allocator.
// All allocation goes through Next; no caller may read-then-write the counter,
// as that reintroduces the duplicate-ID race this design exists to prevent.
type CounterStore interface {
	// Next atomically advances the counter and returns the new value.
	// Two concurrent calls never observe the same value.
	Next(ctx context.Context) (int64, error)

	// Current returns the counter without advancing it. Under concurrency the
	// value is only a hint; no reservation is implied.
	Current(ctx context.Context) (int64, error)

	// AdvanceTo raises the counter to at least seq so automatic allocation
	// can never re-issue a manually assigned sequence. Never lowers it.
	AdvanceTo(ctx context.Context, seq int64) error
}

// AssignmentStore persists tracking ID assignments. Implementations enforce
// uniqueness on both the user and the tracking ID and return
// sentinel.ErrConflict when a write would violate either.
type AssignmentStore interface {
	// Get returns the assignment for a user, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID id.UserID) (*tracking.Assignment, error)

	// Create writes a new assignment. Returns sentinel.ErrConflict if the
	// user already has one or the tracking ID is already taken.
	Create(ctx context.Context, a tracking.Assignment) error
}
