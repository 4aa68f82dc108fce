package ivfgo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with registry-specific context.
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
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogTrain logs a training run.
func (l *Logger) LogTrain(ctx context.Context, name string, nlist, vectors int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "train failed",
			"index", name,
			"nlist", nlist,
			"vectors", vectors,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "train completed",
			"index", name,
			"nlist", nlist,
			"vectors", vectors,
			"elapsed", elapsed,
		)
	}
}

// LogAdd logs a single addition.
func (l *Logger) LogAdd(ctx context.Context, name, docID string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"index", name,
			"doc_id", docID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"index", name,
			"doc_id", docID,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, name string, k, nprobe, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"index", name,
			"k", k,
			"nprobe", nprobe,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"index", name,
			"k", k,
			"nprobe", nprobe,
			"results", resultsFound,
		)
	}
}

// LogPersist logs a persist of an index blob.
func (l *Logger) LogPersist(ctx context.Context, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"index", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index persisted",
			"index", name,
			"bytes", bytes,
		)
	}
}

// LogLoad logs the materialisation of an index. found reports whether a
// persisted blob existed.
func (l *Logger) LogLoad(ctx context.Context, name string, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"index", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index materialised",
			"index", name,
			"from_store", found,
		)
	}
}
