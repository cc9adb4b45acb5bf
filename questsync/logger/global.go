package logger

import (
	"log/slog"
	"time"
)

// LogSync logs reconciler events
func LogSync(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sync")}, attrs...)...)
}

// LogChain logs contract calls and transactions
func LogChain(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "chain")}, attrs...)...)
}

// LogQuery logs database operations
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs,
			slog.String("query", query),
			slog.Any("error", err),
		)...)
	} else {
		slog.Info("Query executed", append(attrs,
			slog.String("query", query),
		)...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
