// Package slogobs provides an observability.Provider implementation backed by
// the standard library log/slog package.
// Spans are logged as start/end records, counters keep an in-memory running
// total, and log calls map onto slog levels (with TRACE below DEBUG).
// Output can be compact text or JSON, written to any io.Writer or to a
// size-rotated log file. The entry point is [New].
package slogobs
