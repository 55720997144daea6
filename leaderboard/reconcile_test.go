package leaderboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func rawEntries(t *testing.T, s string) []RawEntry {
	t.Helper()
	var raw []RawEntry
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestReconcile(t *testing.T) {
	t.Run("invalid entries are dropped", func(t *testing.T) {
		raw := rawEntries(t, `[{"wallet":"A","score":5},{"wallet":"","score":3},{"wallet":"B","score":"x"},{"wallet":"C","score":9}]`)
		require.Equal(t, []Entry{{Wallet: "C", Score: 9}, {Wallet: "A", Score: 5}}, Reconcile(raw))
	})

	t.Run("shape checks", func(t *testing.T) {
		raw := rawEntries(t, `[
			{"score":1},
			{"wallet":null,"score":1},
			{"wallet":7,"score":1},
			{"wallet":"D"},
			{"wallet":"E","score":null},
			{"wallet":"F","score":true},
			{"wallet":"G","score":0},
			{"wallet":"H","score":-2.5}
		]`)
		require.Equal(t, []Entry{{Wallet: "G", Score: 0}, {Wallet: "H", Score: -2.5}}, Reconcile(raw))
	})

	t.Run("ties keep input order", func(t *testing.T) {
		raw := rawEntries(t, `[{"wallet":"A","score":5},{"wallet":"B","score":7},{"wallet":"C","score":5},{"wallet":"D","score":5}]`)
		view := Reconcile(raw)
		require.Equal(t, []string{"B", "A", "C", "D"}, wallets(view))
	})

	t.Run("duplicates are not merged", func(t *testing.T) {
		raw := rawEntries(t, `[{"wallet":"A","score":5},{"wallet":"A","score":8}]`)
		require.Equal(t, []Entry{{Wallet: "A", Score: 8}, {Wallet: "A", Score: 5}}, Reconcile(raw))
	})

	t.Run("last updated", func(t *testing.T) {
		raw := rawEntries(t, `[{"wallet":"A","score":5,"lastUpdated":"2024-03-01T10:00:00Z"},{"wallet":"B","score":4,"lastUpdated":1709287200000},{"wallet":"C","score":3,"lastUpdated":{}}]`)
		view := Reconcile(raw)
		require.Equal(t, "2024-03-01T10:00:00Z", view[0].LastUpdated)
		require.Equal(t, "1709287200000", view[1].LastUpdated)
		require.Empty(t, view[2].LastUpdated)
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, Reconcile(nil))
		require.NotNil(t, Reconcile(nil))
	})

	t.Run("result is sorted and subset of input", func(t *testing.T) {
		raw := rawEntries(t, `[{"wallet":"A","score":1},{"wallet":"B","score":100},{"wallet":"C","score":50},{"wallet":"","score":1000},{"wallet":"D","score":50.5}]`)
		view := Reconcile(raw)
		require.Len(t, view, 4)
		for i := 1; i < len(view); i++ {
			require.GreaterOrEqual(t, view[i-1].Score, view[i].Score)
		}
	})
}

func TestIsNewHighScore(t *testing.T) {
	var tests = []struct {
		name      string
		candidate float64
		view      []Entry
		want      bool
	}{
		{name: "empty view, positive", candidate: 1, want: true},
		{name: "empty view, zero", candidate: 0, want: false},
		{name: "beats the lowest", candidate: 10, view: []Entry{{Score: 20}, {Score: 5}}, want: true},
		{name: "equal to the lowest", candidate: 5, view: []Entry{{Score: 20}, {Score: 5}}, want: false},
		{name: "below everything", candidate: 4, view: []Entry{{Score: 20}, {Score: 5}}, want: false},
		{name: "above everything", candidate: 21, view: []Entry{{Score: 20}, {Score: 5}}, want: true},
		{name: "unsorted view", candidate: 6, view: []Entry{{Score: 5}, {Score: 20}, {Score: 7}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsNewHighScore(tt.candidate, tt.view))
		})
	}
}

func TestTop(t *testing.T) {
	view := make([]Entry, 15)
	require.Len(t, Top(view, 0), DefaultTop)
	require.Len(t, Top(view, 3), 3)
	require.Len(t, Top(view, 100), 15)
	require.Empty(t, Top(nil, 5))
}

func TestIsOwnAndBest(t *testing.T) {
	view := []Entry{{Wallet: "B", Score: 9}, {Wallet: "A", Score: 7}, {Wallet: "A", Score: 3}}
	require.True(t, IsOwn(view[1], "A"))
	require.False(t, IsOwn(view[0], "A"))
	require.False(t, IsOwn(Entry{}, ""))

	e, ok := Best(view, "A")
	require.True(t, ok)
	require.Equal(t, float64(7), e.Score)

	_, ok = Best(view, "Z")
	require.False(t, ok)
	_, ok = Best(view, "")
	require.False(t, ok)
}

func wallets(view []Entry) []string {
	r := make([]string, len(view))
	for i, e := range view {
		r[i] = e.Wallet
	}
	return r
}
