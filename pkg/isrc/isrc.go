// Package isrc normalises and validates International Standard Recording Codes
// and derives the deterministic index key used for a track's vector document.
package isrc

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Length is the exact number of characters in a normalised ISRC.
const Length = 12

var (
	// ErrMissing is returned for an empty (or whitespace-only) ISRC.
	ErrMissing = errors.New("isrc is required")
	// ErrInvalid is returned when the value is not 12 alphanumeric characters.
	ErrInvalid = errors.New("isrc must be exactly 12 alphanumeric characters")
)

// namespace seeds the UUIDv5 derivation. Changing it re-keys every indexed track.
var namespace = uuid.MustParse("5b0f6f4e-4c1d-4e0a-9b7c-6a1f3c2d8e90")

// Normalize trims surrounding whitespace and upper-cases the code. It does not
// validate; use Parse when the result must be a valid ISRC.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Valid reports whether a normalised value is exactly 12 characters of [A-Z0-9].
func Valid(normalized string) bool {
	if len(normalized) != Length {
		return false
	}
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Parse normalises raw and validates it. Invalid values are rejected, never coerced.
func Parse(raw string) (string, error) {
	n := Normalize(raw)
	if n == "" {
		return "", ErrMissing
	}
	if !Valid(n) {
		return "", ErrInvalid
	}
	return n, nil
}

// DocumentID derives the vector document key for an ISRC. The same code in any
// casing always yields the same UUID.
func DocumentID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(Normalize(code)))
}
