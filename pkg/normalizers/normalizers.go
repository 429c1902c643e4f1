// Package normalizers derives canonical identity keys and display values for guests.
package normalizers

import (
	"strings"
)

// DigitsOnly keeps only the ASCII digits 0-9. Other scripts' digits are dropped so one number
// cannot produce two keys.
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DisplayName trims a guest name and collapses inner runs of whitespace to one space.
// Case and punctuation are preserved because the value is shown back to people.
func DisplayName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SearchTerm prepares user input for a prefix search over stored names. Stored names are
// display names, so the term gets the same treatment and the match stays case-sensitive.
func SearchTerm(s string) string {
	return DisplayName(s)
}
