package utils

import (
	"strings"
	"testing"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		maxLen        int
		wantTruncated bool
	}{
		{name: "shorter than maxLen is unchanged", input: "hello", maxLen: 10},
		{name: "exactly maxLen is unchanged", input: "hello", maxLen: 5},
		{name: "longer than maxLen gets truncated", input: "hello world", maxLen: 5, wantTruncated: true},
		{name: "non-positive maxLen uses default", input: strings.Repeat("x", DefaultMaxStringLength+1), maxLen: 0, wantTruncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateString(tt.input, tt.maxLen)
			truncated := strings.Contains(result, "(truncated, total:")
			if truncated != tt.wantTruncated {
				t.Errorf("TruncateString(%q, %d) = %q, truncated=%v want %v", tt.input, tt.maxLen, result, truncated, tt.wantTruncated)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		expected string
	}{
		{"short input untouched", "Hello", 30, "Hello"},
		{"exact length untouched", "abc", 3, "abc"},
		{"ascii cut with marker", "abcdef", 3, "abc..."},
		{"multibyte runes kept whole", "什么是闭包问题", 3, "什么是..."},
		{"zero keeps only marker", "abc", 0, "..."},
		{"empty input", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateRunes(tt.input, tt.maxRunes, "..."); got != tt.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.expected)
			}
		})
	}
}
