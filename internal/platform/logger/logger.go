package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive it via constructor
// options and must not reach for the global default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
