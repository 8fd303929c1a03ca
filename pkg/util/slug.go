package util

import (
	"strings"
	"unicode"
)

// Slugify lowercases s and joins alphanumeric runs with single hyphens.
// "Power Tools & Drills" becomes "power-tools-drills".
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}
