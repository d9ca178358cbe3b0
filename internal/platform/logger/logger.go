package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON output so log shippers can
// index request_id and org_id without parsing.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
