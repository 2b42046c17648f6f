// Package logging configures the process-wide slog default. Call Init once
// at startup; library packages take an injected *slog.Logger and fall back
// to slog.Default().
package logging

import (
	"log/slog"
	"os"
)

// Init installs a text handler on stderr at the level named by LOG_LEVEL.
// Unset or unrecognized values mean errors only, which keeps the call
// screen free of interleaved log lines.
func Init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	slog.SetDefault(slog.New(handler))
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
