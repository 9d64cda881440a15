package logging

import (
	"log/slog"
	"os"
	"strings"
)

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

// For returns a child logger tagged with the owning component, or nil if the
// parent is nil so call sites can stay nil-tolerant.
func For(parent *slog.Logger, component string) *slog.Logger {
	if parent == nil {
		return nil
	}
	return parent.With("component", component)
}
