package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fruitslash/scorekeeper/endpoint"
	testlogger "github.com/fruitslash/scorekeeper/testutils/logger"
)

type fakeClient struct {
	endpoint string
}

// recordingWait replaces the back-off sleep and counts the calls.
type recordingWait struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (w *recordingWait) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, d)
	return ctx.Err()
}

func newTestExecutor(t *testing.T, endpoints []string, opts ...Option) (*Executor[fakeClient], *recordingWait) {
	t.Helper()
	r, err := endpoint.New(endpoints)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(testlogger.New(t))}, opts...)
	x, err := New(r, func(ep string) (fakeClient, error) { return fakeClient{endpoint: ep}, nil }, opts...)
	require.NoError(t, err)
	w := &recordingWait{}
	x.wait = w.wait
	return x, w
}

func Test_New(t *testing.T) {
	r, err := endpoint.New([]string{"https://a", "https://b", "https://c"})
	require.NoError(t, err)
	bind := func(ep string) (string, error) { return ep, nil }

	t.Run("defaults", func(t *testing.T) {
		x, err := New(r, bind)
		require.NoError(t, err)
		require.Equal(t, 3, x.MaxRetries())
		require.Equal(t, DefaultAttemptTimeout, x.attemptTimeout)
		require.Equal(t, DefaultBackoff, x.backoff)
	})

	t.Run("options", func(t *testing.T) {
		x, err := New(r, bind, WithMaxRetries(5), WithAttemptTimeout(time.Second), WithBackoff(0), WithLogger(nil))
		require.NoError(t, err)
		require.Equal(t, 5, x.MaxRetries())
		require.Equal(t, time.Second, x.attemptTimeout)
		require.Zero(t, x.backoff)
		require.NotNil(t, x.log)
	})

	t.Run("invalid", func(t *testing.T) {
		x, err := New[string](nil, bind)
		require.EqualError(t, err, "endpoints must be assigned")
		require.Nil(t, x)

		x, err = New[string](r, nil)
		require.EqualError(t, err, "client constructor must be assigned")
		require.Nil(t, x)

		x, err = New(r, bind, WithMaxRetries(-1))
		require.EqualError(t, err, "max retries must be positive, got -1")
		require.Nil(t, x)

		x, err = New(r, bind, WithAttemptTimeout(0))
		require.EqualError(t, err, "attempt timeout must be positive, got 0s")
		require.Nil(t, x)

		x, err = New(r, bind, WithBackoff(-time.Second))
		require.EqualError(t, err, "backoff must not be negative, got -1s")
		require.Nil(t, x)
	})
}

func Test_Execute(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		x, w := newTestExecutor(t, []string{"https://a", "https://b"})
		var used []string
		res, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (string, error) {
			used = append(used, c.endpoint)
			return "ok", nil
		})
		require.NoError(t, err)
		require.Equal(t, "ok", res)
		require.Equal(t, []string{"https://a"}, used)
		require.Empty(t, w.calls)
	})

	t.Run("failover to next endpoint", func(t *testing.T) {
		x, w := newTestExecutor(t, []string{"https://a", "https://b", "https://c"})
		var used []string
		res, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (int, error) {
			used = append(used, c.endpoint)
			if c.endpoint == "https://a" {
				return 0, errors.New("connection refused")
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, res)
		require.Equal(t, []string{"https://a", "https://b"}, used)
		require.Equal(t, []time.Duration{DefaultBackoff}, w.calls)
	})

	t.Run("all endpoints fail", func(t *testing.T) {
		x, w := newTestExecutor(t, []string{"https://a", "https://b", "https://c"}, WithBackoff(5*time.Millisecond))
		var used []string
		res, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (*int, error) {
			used = append(used, c.endpoint)
			return nil, errors.New("boom at " + c.endpoint)
		})
		require.Nil(t, res)
		var aggErr *AggregateError
		require.ErrorAs(t, err, &aggErr)
		require.Equal(t, 3, aggErr.Attempts)
		require.EqualError(t, err, "all 3 attempts failed, last error: request to https://c failed: boom at https://c")
		var trErr *TransportError
		require.ErrorAs(t, err, &trErr)
		require.Equal(t, "https://c", trErr.Endpoint)
		require.Equal(t, []string{"https://a", "https://b", "https://c"}, used)
		// no back-off after the last attempt
		require.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, w.calls)
	})

	t.Run("more retries than endpoints wraps around", func(t *testing.T) {
		x, w := newTestExecutor(t, []string{"https://a", "https://b"}, WithMaxRetries(5))
		var used []string
		_, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (bool, error) {
			used = append(used, c.endpoint)
			return false, errors.New("nope")
		})
		require.ErrorContains(t, err, "all 5 attempts failed")
		require.Equal(t, []string{"https://a", "https://b", "https://a", "https://b", "https://a"}, used)
		require.Len(t, w.calls, 4)
	})

	t.Run("attempt timeout cancels the attempt", func(t *testing.T) {
		x, _ := newTestExecutor(t, []string{"https://slow", "https://fast"}, WithAttemptTimeout(50*time.Millisecond))
		cancelled := make(chan error, 1)
		res, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (string, error) {
			if c.endpoint == "https://slow" {
				<-ctx.Done()
				cancelled <- ctx.Err()
				return "", ctx.Err()
			}
			return "fast", nil
		})
		require.NoError(t, err)
		require.Equal(t, "fast", res)
		select {
		case err := <-cancelled:
			require.ErrorIs(t, err, context.DeadlineExceeded)
		case <-time.After(time.Second):
			t.Fatal("slow attempt was not cancelled")
		}
	})

	t.Run("timeout of every attempt", func(t *testing.T) {
		x, _ := newTestExecutor(t, []string{"https://a", "https://b"}, WithAttemptTimeout(10*time.Millisecond))
		block := make(chan struct{})
		defer close(block)
		// operation ignores cancellation, its result must be discarded
		_, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (string, error) {
			<-block
			return "too late", nil
		})
		require.ErrorIs(t, err, ErrTimeout)
		var toErr *TimeoutError
		require.ErrorAs(t, err, &toErr)
		require.Equal(t, "https://b", toErr.Endpoint)
		require.EqualError(t, err, "all 2 attempts failed, last error: request to https://b timed out after 10ms")
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		x, w := newTestExecutor(t, []string{"https://a", "https://b"})
		errBad := errors.New("bad request")
		calls := 0
		_, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (string, error) {
			calls++
			return "", Permanent(errBad)
		})
		require.Same(t, errBad, err)
		require.Equal(t, 1, calls)
		require.Empty(t, w.calls)
	})

	t.Run("caller cancels", func(t *testing.T) {
		x, _ := newTestExecutor(t, []string{"https://a", "https://b"})
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := Execute(ctx, x, func(ctx context.Context, c fakeClient) (string, error) {
			calls++
			cancel()
			return "", errors.New("interrupted")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.EqualError(t, err, "request interrupted: context canceled")
		require.Equal(t, 1, calls)
	})
}

func Test_Execute_bindFailure(t *testing.T) {
	r, err := endpoint.New([]string{"https://a", "https://b"})
	require.NoError(t, err)
	x, err := New(r, func(ep string) (fakeClient, error) {
		if ep == "https://a" {
			return fakeClient{}, errors.New("invalid endpoint")
		}
		return fakeClient{endpoint: ep}, nil
	}, WithBackoff(0), WithLogger(testlogger.New(t)))
	require.NoError(t, err)

	res, err := Execute(context.Background(), x, func(ctx context.Context, c fakeClient) (string, error) {
		return c.endpoint, nil
	})
	require.NoError(t, err)
	require.Equal(t, "https://b", res)
}

func Test_sleep(t *testing.T) {
	require.NoError(t, sleep(context.Background(), time.Millisecond))
	require.NoError(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func Test_Permanent(t *testing.T) {
	require.NoError(t, Permanent(nil))
	err := errors.New("terminal")
	require.ErrorIs(t, Permanent(err), err)
	require.EqualError(t, Permanent(err), "terminal")
}
