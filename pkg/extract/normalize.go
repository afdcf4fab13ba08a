package extract

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to text cut at its cap
const TruncationMarker = "…"

var controlReplacer = strings.NewReplacer("\r", "", "\x00", "")

// Normalize strips carriage returns and NUL bytes, trims surrounding
// whitespace and caps the result at max runes. Capped text gets the single
// rune TruncationMarker appended, so its length is max+1 runes.
func Normalize(s string, max int) string {
	text := strings.TrimSpace(controlReplacer.Replace(s))
	return Truncate(text, max)
}

// Truncate caps s at max runes, appending TruncationMarker when it cuts.
// A non-positive max disables the cap.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}
