// Package audit records tracking ID allocations. The trail is append-only:
// one entry per allocation, written before the allocation is considered
// successful, and never updated or deleted afterwards.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"edueasy/internal/tracking"
	id "edueasy/pkg/domain"
)

// Entry is one allocation event. ActorID is set only for manual assignments,
// where an administrator acts on the user's behalf.
type Entry struct {
	ID         uuid.UUID
	TrackingID tracking.ID
	UserID     id.UserID
	Method     tracking.Method
	ActorID    string
	RequestID  string
	Timestamp  time.Time
}

// Store persists audit entries. Append-only by contract: implementations
// expose no update or delete.
type Store interface {
	Append(ctx context.Context, e Entry) error
	ListByTrackingID(ctx context.Context, trackingID tracking.ID) ([]Entry, error)
}
