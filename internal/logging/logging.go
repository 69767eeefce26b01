// Package logging builds the component-tagged slog.Logger that cmd/clawscan
// creates and hands to the watch server, mirroring the teacher's
// text-handler-to-stdout setup. Detectors and registries do not log.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// LevelFromString maps a config/flag log-level string to slog.Level,
// defaulting to Info on an unrecognized value.
func LevelFromString(level string) slog.Level {
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

// New builds the root logger for the process at the given level.
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: LevelFromString(level),
	}))
}

// Component returns a child logger tagged with the owning component name,
// the same "component" attribute convention the teacher's packages use.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
