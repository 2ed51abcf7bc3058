package toolexec

import (
	"unicode/utf8"

	"github.com/algojuke/discovery/pkg/isrc"
)

// Validator is implemented by tool inputs. Validate returns nil or an error
// describing the first invalid field.
type Validator interface {
	Validate() error
}

// StringLength checks that v has between lo and hi characters.
func StringLength(field, v string, lo, hi int) error {
	n := utf8.RuneCountInString(v)
	switch {
	case n < lo && lo == 1:
		return NewValidationError(field, "must not be empty")
	case n < lo:
		return NewValidationError(field, "must be at least %d characters", lo)
	case hi > 0 && n > hi:
		return NewValidationError(field, "must be at most %d characters (got %d)", hi, n)
	}
	return nil
}

// IntRange checks lo <= v <= hi.
func IntRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return NewValidationError(field, "must be between %d and %d (got %d)", lo, hi, v)
	}
	return nil
}

// OneOf checks that v is one of the allowed values.
func OneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return NewValidationError(field, "must be one of %v (got %q)", allowed, v)
}

// ItemCount checks that a list has between lo and hi items.
func ItemCount(field string, n, lo, hi int) error {
	if n < lo || n > hi {
		return NewValidationError(field, "must contain between %d and %d items (got %d)", lo, hi, n)
	}
	return nil
}

// ISRC checks that raw normalises to a valid ISRC and returns the normalised value.
func ISRC(field, raw string) (string, error) {
	code, err := isrc.Parse(raw)
	if err != nil {
		return "", NewValidationError(field, "%v", err)
	}
	return code, nil
}
