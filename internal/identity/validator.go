// Package identity validates South African national identity numbers.
//
// Validation is pure: no I/O, no logging, no clock. The same input always
// yields the same outcome, which is what lets the HTTP layer treat an invalid
// ID as an expected form-field outcome rather than a system error.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Reason enumerates why a candidate ID was rejected.
type Reason string

const (
	ReasonFormatInvalid   Reason = "format_invalid"
	ReasonDateInvalid     Reason = "date_invalid"
	ReasonChecksumInvalid Reason = "checksum_invalid"
)

// Outcome is the result of validating one candidate ID.
type Outcome struct {
	Valid  bool
	Reason Reason
}

const idLength = 13

// Validate checks a candidate 13-digit South African national ID.
//
// The input is taken as-is: no whitespace or separator stripping happens here.
// Callers that want to accept formatted input must normalize before calling,
// so that this function never silently accepts malformed data.
//
// Checks run in order and the first failure wins:
//  1. exactly 13 decimal digits,
//  2. digits 2-3 are a month 01-12 and digits 4-5 a day 01-31 (coarse
//     plausibility only: day 31 in a 30-day month and Feb 29 in any year are
//     accepted, matching the behavior the rest of the platform relies on),
//  3. the 13th digit matches a Luhn checksum over the first 12.
func Validate(candidate string) Outcome {
	if len(candidate) != idLength {
		return Outcome{Reason: ReasonFormatInvalid}
	}
	for i := 0; i < idLength; i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return Outcome{Reason: ReasonFormatInvalid}
		}
	}

	month := digit(candidate, 2)*10 + digit(candidate, 3)
	day := digit(candidate, 4)*10 + digit(candidate, 5)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Outcome{Reason: ReasonDateInvalid}
	}

	if checkDigit(candidate) != digit(candidate, 12) {
		return Outcome{Reason: ReasonChecksumInvalid}
	}

	return Outcome{Valid: true}
}

// checkDigit computes the Luhn-style check digit over the first 12 digits:
// even positions (0-indexed) are added raw, odd positions are doubled with 9
// subtracted when the double exceeds 9.
func checkDigit(candidate string) int {
	sum := 0
	for i := 0; i < idLength-1; i++ {
		d := digit(candidate, i)
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

func digit(s string, i int) int {
	return int(s[i] - '0')
}

// Last4 returns the retained fragment of a national ID for audit and display.
// By policy only these four digits and a hash survive validation; the full
// value is discarded by this core.
func Last4(candidate string) string {
	if len(candidate) < 4 {
		return candidate
	}
	return candidate[len(candidate)-4:]
}

// Hash returns the SHA-256 hex digest of a national ID, giving audit records
// a stable correlation key without storing PII.
func Hash(candidate string) string {
	sum := sha256.Sum256([]byte(candidate))
	return hex.EncodeToString(sum[:])
}
