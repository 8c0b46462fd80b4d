// Package verification implements the applicant verification workflow: gate
// on the national ID validator, then assign a durable tracking ID. The two
// steps have no other coupling; this service is the place they meet.
package verification

import (
	"context"
	"time"

	"edueasy/internal/identity"
	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
)

// Request is one verification attempt. CandidateID must already be normalized
// by the caller (the HTTP layer trims surrounding whitespace); the validator
// itself never strips anything.
type Request struct {
	UserID      id.UserID
	CandidateID string
}

// Result is the outcome of an attempt. Invalid IDs are results, not errors:
// they map to form-field feedback, never to system failures.
type Result struct {
	Valid      bool
	Reason     identity.Reason
	TrackingID tracking.ID
	IDLast4    string
}

// Record is what survives a successful verification. The full national ID is
// discarded; only the last four digits and a hash are retained.
type Record struct {
	UserID     id.UserID
	IDLast4    string
	IDHash     string
	TrackingID tracking.ID
	VerifiedAt time.Time
}

// RecordStore persists verification records.
type RecordStore interface {
	// Get returns the record for a user, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID id.UserID) (*Record, error)

	// Create writes a new record. Returns sentinel.ErrConflict when the user
	// is already verified.
	Create(ctx context.Context, r Record) error
}
