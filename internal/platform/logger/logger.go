package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so audit-tagged
// lines stay machine-parseable alongside the ledger.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
