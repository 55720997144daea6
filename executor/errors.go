package executor

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches (errors.Is) every *TimeoutError.
var ErrTimeout = errors.New("attempt timed out")

type (
	// TimeoutError is the failure of single attempt which didn't complete in time.
	TimeoutError struct {
		Endpoint string
		Timeout  time.Duration
	}

	// TransportError is network or endpoint failure of single attempt.
	TransportError struct {
		Endpoint string
		Err      error
	}

	// AggregateError is returned when all attempts have failed.
	AggregateError struct {
		Attempts int
		Last     error
	}

	permanentError struct {
		err error
	}
)

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.Endpoint, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *AggregateError) Error() string {
	return fmt.Sprintf("all %d attempts failed, last error: %v", e.Attempts, e.Last)
}

func (e *AggregateError) Unwrap() error { return e.Last }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

/*
Permanent marks error returned by an operation as terminal - executor returns
it (unwrapped) immediately instead of trying the next endpoint.
*/
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
