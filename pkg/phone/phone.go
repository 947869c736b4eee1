package phone

import (
	"regexp"
	"strings"
)

const (
	// E.164 bounds on the full international number, country code included.
	minDigits = 7
	maxDigits = 15
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// Normalize strips formatting so the result can be used as a storage key.
func Normalize(raw string) string {
	return nonDigitRegex.ReplaceAllString(raw, "")
}

// CountryCode returns the longest known calling code that prefixes digits.
func CountryCode(digits string) (string, bool) {
	// Calling codes are prefix-free, but try the longest first so a future
	// overlapping entry still resolves deterministically.
	for n := 3; n >= 1; n-- {
		if len(digits) < n {
			continue
		}
		if _, ok := callingCodes[digits[:n]]; ok {
			return digits[:n], true
		}
	}
	return "", false
}

// Validate reports ErrInvalidIdentifier unless id is a normalized number with a
// known country calling code and a plausible length.
func Validate(id string) error {
	if id == "" || id != Normalize(id) {
		return ErrInvalidIdentifier
	}
	if len(id) < minDigits || len(id) > maxDigits {
		return ErrInvalidIdentifier
	}
	if _, ok := CountryCode(id); !ok {
		return ErrInvalidIdentifier
	}
	return nil
}

// Mask hides all but the last four digits, for logs.
func Mask(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
