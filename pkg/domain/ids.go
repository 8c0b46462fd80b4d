// Package domain holds typed identifiers shared across bounded contexts.
// Typed IDs make it a compile error to pass a user ID where an actor ID is
// expected, and parsing enforces the invariant that IDs are valid, non-nil
// UUIDs at every trust boundary.
package domain

import (
	"github.com/google/uuid"

	dErrors "edueasy/pkg/domain-errors"
)

// UserID identifies an applicant.
type UserID uuid.UUID

// ParseUserID parses and validates a candidate user ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s)
	return UserID(u), err
}

func (u UserID) String() string { return uuid.UUID(u).String() }

// IsNil reports whether the ID is the zero UUID.
func (u UserID) IsNil() bool { return uuid.UUID(u) == uuid.Nil }

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	// uuid.Parse accepts URN and braced forms; this service only ever emits
	// the canonical hyphenated form, so reject everything else.
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a canonical UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be nil")
	}
	return u, nil
}
