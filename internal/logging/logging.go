// Package logging создает корневой slog-логгер сервиса.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger создает JSON-логгер в stdout с уровнем level.
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level)
}

// New создает JSON-логгер, пишущий в w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel разбирает debug|info|warn|error, неизвестные значения дают info.
func ParseLevel(level string) slog.Level {
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
