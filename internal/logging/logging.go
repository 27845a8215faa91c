// Package logging builds the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON-handler logger in prod mode and a human-readable
// text-handler logger otherwise, matching the teacher's
// JSON-for-production / text-for-development handler split.
func New(mode string) *slog.Logger {
	level := slog.LevelInfo
	if mode != "prod" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
