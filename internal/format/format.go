// Package format implements the small string transforms shared by the
// daemon and the companion CLI: time formatting, character-count
// truncation, and Pango markup escaping.
package format

import (
	"fmt"
	"strings"
)

// Time renders a playback offset in seconds as "M:SS", clamping negative
// input to zero.
func Time(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Truncate limits s to at most max characters (counted by rune, not byte).
// When truncation occurs, the last character of the result is replaced by
// "…", so the returned string is exactly max characters long.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// PangoEscape replaces the five characters Pango markup treats specially.
// The ampersand substitution must run first, or escaping the other four
// characters would themselves be re-escaped.
func PangoEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// Label renders the default "{artist}{sep}{title}" watch-format string,
// where sep is " - " only when both fields are non-empty.
func Label(artist, title string) string {
	if artist != "" && title != "" {
		return artist + " - " + title
	}
	return artist + title
}
