package pairing

import "strings"

// GroupSize is the number of characters between dashes in a formatted code.
const GroupSize = 4

// Format groups a raw pairing code into dash-separated blocks of GroupSize
// characters. Existing dashes and spaces are dropped first, so formatting is
// idempotent. Empty or separator-only input is returned unchanged.
func Format(code string) string {
	raw := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, code)
	if raw == "" {
		return code
	}

	runes := []rune(raw)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/GroupSize)
	for i, r := range runes {
		if i > 0 && i%GroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
