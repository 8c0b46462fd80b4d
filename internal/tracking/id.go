// Package tracking defines the tracking identifier assigned to every verified
// applicant: its wire format, its parsing rules, and the assignment model
// shared by the allocator service and its stores.
package tracking

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	id "edueasy/pkg/domain"
	dErrors "edueasy/pkg/domain-errors"
)

// Prefix is the fixed literal every tracking ID starts with.
const Prefix = "EDU-ZA"

// MaxSequence is the highest sequence the 6-digit field can carry. Reaching
// it is a hard operational limit requiring manual intervention, never a
// silent wrap.
const MaxSequence int64 = 999999

// pattern is the one bit-exact contract consumers may rely on.
var pattern = regexp.MustCompile(`^EDU-ZA-\d{2}-\d{6}$`)

// ID is a tracking identifier in the form EDU-ZA-YY-NNNNNN.
type ID string

// Format builds a tracking ID from a clock reading and a sequence value. The
// year suffix is cosmetic: it reflects the allocation date, while the sequence
// is globally monotonic across years.
func Format(now time.Time, seq int64) ID {
	return ID(fmt.Sprintf("%s-%02d-%06d", Prefix, now.Year()%100, seq))
}

// Parse validates a candidate tracking ID string.
func Parse(s string) (ID, error) {
	if !pattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tracking id must match EDU-ZA-YY-NNNNNN")
	}
	return ID(s), nil
}

func (t ID) String() string { return string(t) }

// Year returns the two-digit year suffix.
func (t ID) Year() int {
	n, _ := strconv.Atoi(string(t)[7:9])
	return n
}

// Sequence returns the numeric sequence component.
func (t ID) Sequence() int64 {
	n, _ := strconv.ParseInt(string(t)[10:], 10, 64)
	return n
}

// Method records how a tracking ID reached a user.
type Method string

const (
	MethodAutomatic Method = "automatic"
	MethodManual    Method = "manual"
)

// Assignment binds a tracking ID to a user. Assignments are written exactly
// once and never reassigned, even if the owning user record is later deleted.
type Assignment struct {
	UserID     id.UserID
	TrackingID ID
	Method     Method
	AssignedAt time.Time
}
