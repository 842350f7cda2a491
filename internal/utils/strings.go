package utils

import "fmt"

const (
	// DefaultMaxStringLength is the default maximum length for truncated previews
	DefaultMaxStringLength = 500
)

// TruncateString shortens s to at most maxLen bytes for log previews, appending
// a suffix that records the original total length. If maxLen is zero or
// negative, [DefaultMaxStringLength] is used instead.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}

// TruncateRunes keeps the first maxRunes runes of s and appends marker when
// anything was cut. It never splits a multi-byte character.
func TruncateRunes(s string, maxRunes int, marker string) string {
	if maxRunes < 0 {
		maxRunes = 0
	}
	count := 0
	for index := range s {
		if count == maxRunes {
			return s[:index] + marker
		}
		count++
	}
	return s
}
