/*
Package executor runs remote operations against a pool of interchangeable
endpoints, retrying failed attempts on the next endpoint.
*/
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fruitslash/scorekeeper/logger"
)

type (
	// Endpoints is the source of endpoints to try, see endpoint.Rotator.
	Endpoints interface {
		Next() string
		Len() int
	}

	// Operation is a single remote call made using client bound to one endpoint.
	Operation[C, T any] func(ctx context.Context, client C) (T, error)

	Executor[C any] struct {
		endpoints      Endpoints
		bind           func(endpoint string) (C, error)
		maxRetries     int
		attemptTimeout time.Duration
		backoff        time.Duration
		log            *slog.Logger

		// wait blocks for the back-off delay between attempts
		wait func(ctx context.Context, d time.Duration) error
	}
)

/*
New creates executor which binds client of type C to endpoint returned by
"endpoints" for every attempt. Failure to bind the client counts as failed
attempt.
*/
func New[C any](endpoints Endpoints, bind func(endpoint string) (C, error), opts ...Option) (*Executor[C], error) {
	if endpoints == nil || endpoints.Len() == 0 {
		return nil, errors.New("endpoints must be assigned")
	}
	if bind == nil {
		return nil, errors.New("client constructor must be assigned")
	}
	o := defaultOptions(endpoints.Len())
	for _, opt := range opts {
		opt(o)
	}
	if o.maxRetries < 1 {
		return nil, fmt.Errorf("max retries must be positive, got %d", o.maxRetries)
	}
	if o.attemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt timeout must be positive, got %s", o.attemptTimeout)
	}
	if o.backoff < 0 {
		return nil, fmt.Errorf("backoff must not be negative, got %s", o.backoff)
	}
	return &Executor[C]{
		endpoints:      endpoints,
		bind:           bind,
		maxRetries:     o.maxRetries,
		attemptTimeout: o.attemptTimeout,
		backoff:        o.backoff,
		log:            o.log,
		wait:           sleep,
	}, nil
}

// MaxRetries returns total number of attempts the executor makes.
func (x *Executor[C]) MaxRetries() int { return x.maxRetries }

/*
Execute calls "op" until it succeeds or the executor runs out of attempts.

Every attempt uses client bound to the next endpoint and is limited by the
attempt timeout. When the timeout fires the context passed to "op" is
cancelled so the in-flight request is aborted; result of an operation which
ignores the cancellation is discarded. Failed attempts are followed by a
fixed back-off delay, except the last one.

When all attempts fail *AggregateError wrapping the last attempt's error is
returned. Errors marked with Permanent and cancellation of "ctx" end the loop
immediately.
*/
func Execute[C, T any](ctx context.Context, x *Executor[C], op Operation[C, T]) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < x.maxRetries; attempt++ {
		ep := x.endpoints.Next()
		res, err := runAttempt(ctx, x, ep, op)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("request interrupted: %w", ctxErr)
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		x.log.DebugContext(ctx, "remote call attempt failed", logger.Endpoint(ep), logger.Attempt(attempt), logger.Error(err))
		if attempt == x.maxRetries-1 {
			break
		}
		if err := x.wait(ctx, x.backoff); err != nil {
			return zero, fmt.Errorf("request interrupted: %w", err)
		}
	}
	x.log.WarnContext(ctx, fmt.Sprintf("remote call failed after %d attempts", x.maxRetries), logger.Error(lastErr))
	return zero, &AggregateError{Attempts: x.maxRetries, Last: lastErr}
}

func runAttempt[C, T any](ctx context.Context, x *Executor[C], ep string, op Operation[C, T]) (T, error) {
	type result struct {
		value T
		err   error
	}

	var zero T
	actx, cancel := context.WithTimeout(ctx, x.attemptTimeout)
	defer cancel()

	client, err := x.bind(ep)
	if err != nil {
		return zero, &TransportError{Endpoint: ep, Err: fmt.Errorf("creating client: %w", err)}
	}
	// buffered so that the goroutine of an abandoned attempt doesn't leak
	rc := make(chan result, 1)
	go func() {
		v, err := op(actx, client)
		rc <- result{value: v, err: err}
	}()

	select {
	case r := <-rc:
		if r.err == nil {
			return r.value, nil
		}
		return zero, classify(ctx, actx, ep, x.attemptTimeout, r.err)
	case <-actx.Done():
		return zero, classify(ctx, actx, ep, x.attemptTimeout, actx.Err())
	}
}

func classify(ctx, actx context.Context, ep string, timeout time.Duration, err error) error {
	if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Endpoint: ep, Timeout: timeout}
	}
	var perm *permanentError
	var te *TransportError
	if errors.As(err, &perm) || errors.As(err, &te) || errors.Is(err, ErrTimeout) {
		return err
	}
	return &TransportError{Endpoint: ep, Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
