package app

import (
	"io"
	"log/slog"
)

// logLevels maps the validated log-level names to slog levels. NewConfig
// rejects anything else before a logger is ever built.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the invocation's logger from already-validated
// settings. It does not set the global logger, so each invocation keeps an
// isolated logger instance.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[level]}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
