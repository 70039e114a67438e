package precinct

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D+`)

// Normalize canonicalizes a free-form precinct identifier into its padded
// and unpadded forms. Upstream sources zero-pad precinct numbers
// inconsistently ("074" vs "74" vs "4"), so every cross-source join must
// pass both sides through here; skipping it silently drops matches.
// ok is false when the identifier carries no digits at all.
func Normalize(raw string) (padded, unpadded string, ok bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return "", "", false
	}
	unpadded = strings.TrimLeft(digits, "0")
	if unpadded == "" {
		unpadded = "0"
	}
	padded = unpadded
	for len(padded) < 3 {
		padded = "0" + padded
	}
	return padded, unpadded, true
}
