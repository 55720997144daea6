package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fruitslash/scorekeeper/logger"
)

type State int

const (
	StateLoading State = iota
	StateError
	StateEmpty
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type (
	// Fetcher loads the raw leaderboard from the scoring process.
	Fetcher func(ctx context.Context) ([]RawEntry, error)

	// SnapshotStore persists the last reconciled view between restarts.
	SnapshotStore interface {
		SetSnapshot(entries []Entry, updated time.Time) error
		LoadSnapshot() ([]Entry, time.Time, error)
	}

	// View is immutable copy of the board state.
	View struct {
		State   State     `json:"status"`
		Entries []Entry   `json:"entries"`
		Error   string    `json:"error,omitempty"`
		Updated time.Time `json:"updated"`
	}

	/*
	Board holds the current leaderboard view. The view is replaced as a whole
	on every successful refresh, it's never patched.
	*/
	Board struct {
		fetch     Fetcher
		snapshots SnapshotStore
		log       *slog.Logger
		now       func() time.Time

		mu      sync.RWMutex
		view    View
		started uint64 // sequence number of the last started refresh
		applied uint64 // sequence number of the refresh the view is from

		// serializes snapshot writes, persisted is the sequence number of the
		// refresh the stored snapshot is from
		persistMu sync.Mutex
		persisted uint64
	}
)

/*
NewBoard creates board which loads data using "fetch". When "snapshots" is
not nil the last stored view is loaded from it and every refreshed view is
stored into it.
*/
func NewBoard(fetch Fetcher, snapshots SnapshotStore, log *slog.Logger) (*Board, error) {
	if fetch == nil {
		return nil, errors.New("leaderboard fetcher must be assigned")
	}
	if log == nil {
		return nil, errors.New("logger must be assigned")
	}
	b := &Board{
		fetch:     fetch,
		snapshots: snapshots,
		log:       log,
		now:       time.Now,
		view:      View{State: StateLoading, Entries: []Entry{}},
	}
	if snapshots != nil {
		entries, updated, err := snapshots.LoadSnapshot()
		if err != nil {
			return nil, fmt.Errorf("loading leaderboard snapshot: %w", err)
		}
		if len(entries) > 0 {
			b.view = View{State: StateReady, Entries: entries, Updated: updated}
		}
	}
	return b, nil
}

// Current returns the current view.
func (b *Board) Current() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

/*
Refresh loads the leaderboard and replaces the view with reconciled data.
While loading the board is in loading state with previous entries still
available. When loading fails the board goes to error state (previous
entries are kept but the caller should show the error instead). Result of
a refresh which completes after a newer one has been applied is discarded.
*/
func (b *Board) Refresh(ctx context.Context) (View, error) {
	b.mu.Lock()
	b.started++
	seq := b.started
	b.view.State = StateLoading
	b.view.Error = ""
	b.mu.Unlock()

	raw, err := b.fetch(ctx)
	if err != nil {
		b.log.WarnContext(ctx, "loading leaderboard", logger.Error(err))
		b.mu.Lock()
		defer b.mu.Unlock()
		if seq > b.applied {
			b.applied = seq
			b.view.State = StateError
			b.view.Error = err.Error()
		}
		return b.view, err
	}

	view := View{Entries: Reconcile(raw), Updated: b.now()}
	view.State = StateReady
	if len(view.Entries) == 0 {
		view.State = StateEmpty
	}

	b.mu.Lock()
	if seq <= b.applied {
		cur := b.view
		b.mu.Unlock()
		b.log.DebugContext(ctx, "discarding stale leaderboard refresh")
		return cur, nil
	}
	b.applied = seq
	b.view = view
	b.mu.Unlock()

	b.log.DebugContext(ctx, fmt.Sprintf("leaderboard refreshed, %d entries", len(view.Entries)))
	b.persist(ctx, seq, view)
	return view, nil
}

// persist stores the view of refresh "seq" unless a newer one has been stored already.
func (b *Board) persist(ctx context.Context, seq uint64, view View) {
	if b.snapshots == nil {
		return
	}
	b.persistMu.Lock()
	defer b.persistMu.Unlock()
	if seq <= b.persisted {
		return
	}
	if err := b.snapshots.SetSnapshot(view.Entries, view.Updated); err != nil {
		b.log.WarnContext(ctx, "storing leaderboard snapshot", logger.Error(err))
		return
	}
	b.persisted = seq
}
