package fragindex

import (
	"log/slog"
	"runtime"

	"github.com/mzkit/fragindex/archive"
)

type options struct {
	compression archive.Compression
	logger      *Logger
	concurrency int
}

// Option configures the package-level convenience functions.
type Option func(*options)

// WithCompression selects the codec and level for persisted artifacts.
//
// If unset, archive.DefaultCompression is used.
func WithCompression(c archive.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithConcurrency bounds the number of indexes ReadMany loads in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression: archive.DefaultCompression,
		logger:      NoopLogger(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
