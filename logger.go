package fragindex

import (
	"context"
	"log/slog"
	"os"

	"github.com/mzkit/fragindex/archive"
	"github.com/mzkit/fragindex/mass"
)

// Logger wraps slog.Logger with fragindex-specific context.
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

// WithLibrary adds a library name field to the logger.
func (l *Logger) WithLibrary(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("library", name),
	}
}

// WithTolerance adds a tolerance field to the logger.
func (l *Logger) WithTolerance(tol mass.Tolerance) *Logger {
	return &Logger{
		Logger: l.Logger.With("tolerance", tol.String()),
	}
}

// LogWrite logs a persist operation.
func (l *Logger) LogWrite(ctx context.Context, parents, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index write failed",
			"parents", parents,
			"entries", entries,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index written",
			"parents", parents,
			"entries", entries,
		)
	}
}

// LogOpen logs a lazy-handle open.
func (l *Logger) LogOpen(ctx context.Context, meta archive.Metadata, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index open failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index opened",
		"bins_per_dalton", meta.BinsPerDalton,
		"max_item_mass", meta.MaxItemMass,
	)
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, si *FragmentIndex, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index load failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index loaded",
		"parents", si.NumParents(),
		"entries", si.NumEntries(),
		"bins_per_dalton", si.BinsPerDalton(),
	)
}
