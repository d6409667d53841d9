package vulnquery

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vulnquery-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogQuery logs a completed query.
func (l *Logger) LogQuery(ctx context.Context, op, dataset string, partitions, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"op", op,
			"dataset", dataset,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"op", op,
			"dataset", dataset,
			"partitions", partitions,
			"rows", rows,
		)
	}
}

// LogPartitionSkip logs a partition that was skipped after a local failure.
// Oversized metadata and generic transport failures are distinguished so
// misproduced partitions stand out from flaky networks.
func (l *Logger) LogPartitionSkip(ctx context.Context, perr *PartitionError) {
	if perr.Oversized {
		l.WarnContext(ctx, "partition metadata too large for client, skipping",
			"partition", perr.Key,
			"index", perr.Index,
			"error", perr.Unwrap(),
		)
	} else {
		l.WarnContext(ctx, "partition unreachable, skipping",
			"partition", perr.Key,
			"index", perr.Index,
			"error", perr.Unwrap(),
		)
	}
}

// LogEarlyStop logs that the sorted-dataset heuristic ended a scan.
func (l *Logger) LogEarlyStop(ctx context.Context, dataset string, stoppedAt, total int) {
	l.DebugContext(ctx, "empty partition after match, stopping scan",
		"dataset", dataset,
		"stopped_at", stoppedAt,
		"partitions", total,
	)
}

// LogClose logs engine shutdown.
func (l *Logger) LogClose(err error) {
	if err != nil {
		l.Error("close failed", "error", err)
	} else {
		l.Debug("engine closed")
	}
}
