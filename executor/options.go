package executor

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultAttemptTimeout = 30 * time.Second
	DefaultBackoff        = time.Second
)

type (
	Options struct {
		maxRetries     int
		attemptTimeout time.Duration
		backoff        time.Duration
		log            *slog.Logger
	}

	Option func(*Options)
)

// defaultOptions returns defaults for pool of "poolSize" endpoints, ie one
// attempt per endpoint.
func defaultOptions(poolSize int) *Options {
	return &Options{
		maxRetries:     poolSize,
		attemptTimeout: DefaultAttemptTimeout,
		backoff:        DefaultBackoff,
		log:            slog.New(discardHandler{}),
	}
}

// WithMaxRetries sets total number of attempts. Zero value keeps the default
// (size of the endpoint pool).
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n != 0 {
			o.maxRetries = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.attemptTimeout = d
	}
}

// WithBackoff sets fixed delay between attempts.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.backoff = d
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.log = log
		}
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
