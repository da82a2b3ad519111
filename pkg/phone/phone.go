package phone

import (
	"errors"
	"strings"
)

const (
	// MinDigits and MaxDigits bound the accepted international number length.
	MinDigits = 10
	MaxDigits = 15
)

// Sanitize strips every non-digit character. It is total and idempotent:
// any input maps to a digits-only string, and sanitizing twice is a no-op.
func Sanitize(number string) string {
	var b strings.Builder
	b.Grow(len(number))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks a sanitized number against the accepted digit range.
func Validate(sanitized string) error {
	if len(sanitized) == 0 {
		return errors.New("phone number cannot be empty")
	}
	if len(sanitized) < MinDigits || len(sanitized) > MaxDigits {
		return errors.New("phone number must be 10 to 15 digits in international format")
	}
	return nil
}

// SanitizeAndValidate is the canonical entry for external identifiers.
func SanitizeAndValidate(number string) (string, error) {
	sanitized := Sanitize(number)
	if err := Validate(sanitized); err != nil {
		return "", err
	}
	return sanitized, nil
}
