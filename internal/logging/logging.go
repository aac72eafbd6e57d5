// Package logging builds the process-wide slog logger. Development gets
// coloured, human-readable output; every other environment gets JSON.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger writing to w. dev selects the tint text handler.
func New(w io.Writer, dev bool) *slog.Logger {
	if dev {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Init installs the logger as the slog default and returns it.
func Init(w io.Writer, dev bool) *slog.Logger {
	logger := New(w, dev)
	slog.SetDefault(logger)
	return logger
}
