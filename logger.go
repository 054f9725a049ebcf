package clusterfs

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with clusterfs-specific context.
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
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithHandle adds a handle field to the logger.
func (l *Logger) WithHandle(h Handle) *Logger {
	return &Logger{
		Logger: l.Logger.With("handle", h),
	}
}

// WithPath adds a container path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs opening a container.
func (l *Logger) LogOpen(ctx context.Context, path string, minClusterSize int, length int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "container opened",
			"path", path,
			"min_cluster_size", minClusterSize,
			"length", length,
		)
	}
}

// LogAlloc logs a file allocation.
func (l *Logger) LogAlloc(ctx context.Context, h Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "alloc failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "alloc completed",
			"handle", h,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, h Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"handle", h,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"handle", h,
		)
	}
}

// LogRewrite logs a rewrite operation.
func (l *Logger) LogRewrite(ctx context.Context, h Handle, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rewrite failed",
			"handle", h,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "rewrite completed",
			"handle", h,
		)
	}
}

// LogRepair logs a repair operation.
func (l *Logger) LogRepair(ctx context.Context, padded int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "repair failed",
			"error", err,
		)
	} else if padded > 0 {
		l.WarnContext(ctx, "torn tail padded",
			"bytes", padded,
		)
	}
}

// LogEnumerate logs a GetAllFiles scan.
func (l *Logger) LogEnumerate(ctx context.Context, found int, err error) {
	if err != nil {
		l.WarnContext(ctx, "enumeration stopped",
			"found", found,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "enumeration completed",
			"found", found,
		)
	}
}

// LogExport logs an export to an object sink.
func (l *Logger) LogExport(ctx context.Context, files int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "export failed",
			"files", files,
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "export completed",
			"files", files,
			"bytes", bytes,
		)
	}
}
