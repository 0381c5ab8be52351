package config

import (
	"io"
	"log/slog"
	"strings"
)

// SetupLogging installs the default slog logger at the given level,
// writing to w. The worker passes stderr so that stdout stays a clean
// event channel.
func SetupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}
