package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format string

const (
	// FormatCompact is slog's key=value text format (default for development).
	FormatCompact Format = "compact"

	// FormatJSON is one JSON object per record (for log aggregation).
	FormatJSON Format = "json"
)

// LevelTrace sits below DEBUG and is only emitted when explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// ParseFormat parses a format string and returns the corresponding Format.
// Unknown values fall back to FormatCompact.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatCompact
	}
}

// GetFormatFromEnv reads CHATMUX_LOG_FORMAT, then LOG_FORMAT.
func GetFormatFromEnv() Format {
	if format := os.Getenv("CHATMUX_LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	return FormatCompact
}

// String returns the string representation of the Format.
func (f Format) String() string {
	return string(f)
}

// ParseLogLevel parses a log level string into slog.Level.
// Supported values: TRACE, DEBUG, INFO, WARN, WARNING, ERROR (case-insensitive).
// Returns INFO for unknown values and prints a warning to stderr.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Warning: Unknown log level '%s', using INFO\n", level)
		return slog.LevelInfo
	}
}

// GetLogLevelFromEnv reads CHATMUX_LOG_LEVEL, then LOG_LEVEL. Default: INFO.
func GetLogLevelFromEnv() slog.Level {
	level := os.Getenv("CHATMUX_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	return ParseLogLevel(level)
}
