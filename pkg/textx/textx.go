// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Summarize cuts s to at most n runes, ending with "..." when it had to cut.
func Summarize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return TruncateRunes(s, n)
	}
	return TruncateRunes(s, n-3) + "..."
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
