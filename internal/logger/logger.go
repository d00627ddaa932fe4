// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup returns a JSON slog.Logger writing to w.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault installs a JSON logger as the slog default. Development builds
// log at debug level.
func SetupDefault(w io.Writer, production bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	l := Setup(w, level)
	slog.SetDefault(l)
	return l
}
