// Package utils provides shared helpers for logging, vector math and text.
package utils

import "unicode/utf8"

// Truncate returns s cut to at most maxLen bytes without splitting a rune,
// with "..." appended if anything was dropped. maxLen <= 0 returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
