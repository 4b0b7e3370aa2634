package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger writes JSON records to stdout.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewLogger(os.Stdout, service, level, "json")
}

// NewLogger builds a logger tagged with service. format is "json" or "text";
// anything else falls back to JSON.
func NewLogger(w io.Writer, service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
