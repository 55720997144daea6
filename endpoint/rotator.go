/*
Package endpoint implements round-robin selection of compute unit endpoints.
*/
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

var ErrEmptyPool = errors.New("endpoint pool must not be empty")

/*
Rotator hands out endpoints of a fixed pool in list order, cycling forever.

The cursor is shared by all callers: concurrent operations interleave their
picks but one full cycle never skips or repeats an endpoint.
*/
type Rotator struct {
	pool   []string
	cursor atomic.Uint64
}

/*
New validates the endpoint URLs and creates rotator over them. Endpoint without
scheme gets "https://" prefix, trailing slashes are removed.
*/
func New(endpoints []string) (*Rotator, error) {
	if len(endpoints) == 0 {
		return nil, ErrEmptyPool
	}
	pool := make([]string, 0, len(endpoints))
	for i, ep := range endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			return nil, fmt.Errorf("endpoint %d is empty", i)
		}
		if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
			ep = "https://" + ep
		}
		u, err := url.Parse(ep)
		if err != nil {
			return nil, fmt.Errorf("parsing endpoint %d (%s): %w", i, ep, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %d (%s) has no host", i, ep)
		}
		pool = append(pool, strings.TrimRight(u.String(), "/"))
	}
	return &Rotator{pool: pool}, nil
}

// Next returns endpoint at the cursor and advances the cursor.
func (r *Rotator) Next() string {
	n := r.cursor.Add(1) - 1
	return r.pool[n%uint64(len(r.pool))]
}

// Len returns size of the endpoint pool.
func (r *Rotator) Len() int {
	return len(r.pool)
}

// Endpoints returns copy of the endpoint pool in rotation order.
func (r *Rotator) Endpoints() []string {
	return append([]string(nil), r.pool...)
}
