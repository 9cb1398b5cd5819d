// Package text provides rune-aware helpers for article descriptions.
package text

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// CountRunes counts the number of Unicode characters (runes) in the given text.
//
//	CountRunes("hello")      // 5
//	CountRunes("été")        // 3
//	CountRunes("Hello👋")    // 6
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate shortens s to at most maxRunes runes. When s is longer, it is cut
// to maxRunes-3 runes, trailing spaces are trimmed and Ellipsis is appended.
// A maxRunes below 4 cuts without an ellipsis.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if CountRunes(s) <= maxRunes {
		return s
	}
	if maxRunes <= len(Ellipsis) {
		return string([]rune(s)[:maxRunes])
	}
	cut := string([]rune(s)[:maxRunes-len(Ellipsis)])
	return strings.TrimRight(cut, " ") + Ellipsis
}

// CollapseSpace replaces every run of Unicode white space with a single
// space and trims both ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
