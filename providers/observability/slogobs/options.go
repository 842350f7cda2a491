package slogobs

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Option is a functional option for configuring the Observer.
type Option func(*config)

// config holds the configuration for creating an Observer.
type config struct {
	format Format
	level  slog.Level
	output io.Writer
	logger *slog.Logger // If provided, use this logger directly (bypass handler construction)
}

// WithFormat sets the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the output writer for logs.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithLogFile routes output to path, rotating it once it grows past maxSizeMB
// and keeping at most maxBackups old files. Zero values use lumberjack's defaults.
func WithLogFile(path string, maxSizeMB, maxBackups int) Option {
	return func(c *config) {
		if path == "" {
			return
		}
		c.output = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		}
	}
}

// WithLogger uses an existing slog.Logger instead of creating a handler.
// This option takes precedence over format/level/output options.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		format: GetFormatFromEnv(),
		level:  GetLogLevelFromEnv(),
		output: os.Stderr,
	}
}

// applyOptions applies the given options to the config.
func applyOptions(opts ...Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
