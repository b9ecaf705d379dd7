package logging

import (
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall
// back to def.
func ParseLevel(l string, def slog.Level) slog.Level {
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// New returns a text logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
}

// Init installs a stderr logger at the given level as the slog default.
func Init(level string, def slog.Level) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level, def))
	slog.SetDefault(logger)
	return logger
}
