/*
Package leaderboard turns raw leaderboard data returned by the scoring
process into sorted view and answers questions about it.
*/
package leaderboard

import (
	"sort"
	"strconv"
)

// DefaultTop is the number of entries shown by the leaderboard widget.
const DefaultTop = 10

type (
	// RawEntry is leaderboard element as decoded from the process response.
	RawEntry map[string]any

	Entry struct {
		Wallet      string  `json:"wallet"`
		Score       float64 `json:"score"`
		LastUpdated string  `json:"lastUpdated,omitempty"`
	}
)

/*
Reconcile drops entries which do not have non-empty string "wallet" and
numeric "score" and returns the rest sorted by score, highest first. Order
of entries with equal score is preserved. Duplicate wallets are kept.
*/
func Reconcile(raw []RawEntry) []Entry {
	view := make([]Entry, 0, len(raw))
	for _, r := range raw {
		if e, ok := r.entry(); ok {
			view = append(view, e)
		}
	}
	sort.SliceStable(view, func(i, j int) bool { return view[i].Score > view[j].Score })
	return view
}

func (r RawEntry) entry() (Entry, bool) {
	wallet, ok := r["wallet"].(string)
	if !ok || wallet == "" {
		return Entry{}, false
	}
	score, ok := r["score"].(float64)
	if !ok {
		return Entry{}, false
	}
	e := Entry{Wallet: wallet, Score: score}
	switch v := r["lastUpdated"].(type) {
	case string:
		e.LastUpdated = v
	case float64:
		e.LastUpdated = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return e, true
}

/*
IsNewHighScore reports whether "candidate" beats the view. With empty view
any positive score is a high score, otherwise the candidate must be greater
than the lowest score in the view.

NB! this means that score which would not make it into the top positions
shown by the widget still counts as "new high score" as long as it beats
the weakest entry.
*/
func IsNewHighScore(candidate float64, view []Entry) bool {
	if len(view) == 0 {
		return candidate > 0
	}
	lowest := view[0].Score
	for _, e := range view[1:] {
		if e.Score < lowest {
			lowest = e.Score
		}
	}
	return candidate > lowest
}

// Top returns the first n entries of the view, n <= 0 means DefaultTop.
func Top(view []Entry, n int) []Entry {
	if n <= 0 {
		n = DefaultTop
	}
	if len(view) <= n {
		return view
	}
	return view[:n]
}

// IsOwn reports whether entry belongs to the wallet (empty wallet never matches).
func IsOwn(e Entry, wallet string) bool {
	return wallet != "" && e.Wallet == wallet
}

// Best returns the highest score of the wallet in the view.
func Best(view []Entry, wallet string) (Entry, bool) {
	for _, e := range view {
		if IsOwn(e, wallet) {
			// view is sorted, first match is the best
			return e, true
		}
	}
	return Entry{}, false
}
