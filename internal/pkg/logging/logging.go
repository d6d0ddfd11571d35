package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initialises the global slog default logger for a service.
// level may be "debug", "info", "warn", or "error" (default "info").
// format may be "json" or "text" (default "json").
func Setup(service, level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
