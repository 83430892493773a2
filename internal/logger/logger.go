package logger

import (
	"log/slog"
	"os"
)

// New returns the application logger: JSON on stdout at info level.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}
