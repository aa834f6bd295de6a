// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/pricescout/backend/config"
)

// New builds a logger from configuration and installs it as the slog default.
// Development uses a colourised tint handler; other environments emit JSON or plain text.
func New(cfg *config.Config) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg.Server.Environment, cfg.Log)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, environment string, lc config.LogConfig) *slog.Logger {
	level := ParseLevel(lc.Level)

	var handler slog.Handler
	switch {
	case lc.Format == "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case environment == "development":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string onto a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
