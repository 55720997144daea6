/*
Package aoserver implements in-memory fake of the scoring process behind a
compute unit endpoint, for tests.
*/
package aoserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fruitslash/scorekeeper/ao"
)

const (
	ActionSubmitScore    = "SubmitScore"
	ActionGetLeaderboard = "GetLeaderboard"
	ActionGetPlayerScore = "GetPlayerScore"
)

type Entry struct {
	Wallet      string `json:"wallet"`
	Score       uint64 `json:"score"`
	LastUpdated string `json:"lastUpdated"`
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	entries  []Entry
	rawBoard *string
	players  map[string]string
	messages []*ao.DataItem
	queries  []*ao.Query
	failNext int
	delay    time.Duration
	procErr  string
	requests int
}

/*
New starts the fake endpoint, it is closed when the test ends.
*/
func New(t testing.TB) *Server {
	s := &Server{players: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/dry-run", s.dryRun)
	mux.HandleFunc("/", s.send)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// SetEntries replaces the leaderboard entries kept by the process.
func (s *Server) SetEntries(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.rawBoard = nil
}

/*
SetLeaderboard makes GetLeaderboard return "payload" verbatim. Empty string
means "no data in the response".
*/
func (s *Server) SetLeaderboard(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBoard = &payload
}

// SetPlayerScore sets verbatim payload returned for the wallet.
func (s *Server) SetPlayerScore(wallet, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[wallet] = payload
}

// FailNext makes the next n requests fail with status 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetDelay delays every response (request cancellation is respected).
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetProcessError makes dry-run report evaluation error.
func (s *Server) SetProcessError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procErr = msg
}

// Messages returns signed messages accepted so far.
func (s *Server) Messages() []*ao.DataItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ao.DataItem(nil), s.messages...)
}

func (s *Server) Queries() []*ao.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ao.Query(nil), s.queries...)
}

// Requests returns number of requests received (failed ones included).
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) dryRun(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}
	var q ao.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if pid := r.URL.Query().Get("process-id"); pid != q.Target {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "process-id does not match target"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, &q)
	if s.procErr != "" {
		writeJSON(w, http.StatusOK, ao.Result{Error: s.procErr})
		return
	}

	var data string
	action, _ := q.Tags.Get(ao.TagAction)
	switch action {
	case ActionGetLeaderboard:
		data = s.leaderboardPayload()
	case ActionGetPlayerScore:
		wallet, _ := q.Tags.Get(ao.TagWallet)
		data = s.players[wallet]
		if data == "" {
			for _, e := range s.entries {
				if e.Wallet == wallet {
					b, _ := json.Marshal(map[string]any{"score": e.Score, "wallet": e.Wallet})
					data = string(b)
				}
			}
		}
	default:
		writeJSON(w, http.StatusOK, ao.Result{Error: "unknown action " + action})
		return
	}

	res := ao.Result{Messages: []ao.Message{}}
	if data != "" {
		res.Messages = append(res.Messages, ao.Message{Target: q.Owner, Data: data})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !s.begin(w, r) {
		return
	}
	var item ao.DataItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := item.Verify(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, &item)
	if action, _ := item.Tags.Get(ao.TagAction); action == ActionSubmitScore {
		v, _ := item.Tags.Get(ao.TagScore)
		if score, err := strconv.ParseUint(v, 10, 64); err == nil {
			s.record(item.Owner.String(), score)
		}
	}
	writeJSON(w, http.StatusOK, ao.Receipt{ID: item.ID, Timestamp: time.Now().UnixMilli()})
}

// record keeps the best score of the wallet, the caller must hold the lock.
func (s *Server) record(wallet string, score uint64) {
	now := time.Now().UTC().Format(time.RFC3339)
	for i, e := range s.entries {
		if e.Wallet == wallet {
			if score > e.Score {
				s.entries[i].Score, s.entries[i].LastUpdated = score, now
			}
			return
		}
	}
	s.entries = append(s.entries, Entry{Wallet: wallet, Score: score, LastUpdated: now})
}

func (s *Server) leaderboardPayload() string {
	if s.rawBoard != nil {
		return *s.rawBoard
	}
	if len(s.entries) == 0 {
		return ""
	}
	b, _ := json.Marshal(s.entries)
	return string(b)
}

/*
begin counts the request and applies configured failures and delay. Returns
false when the response has been written already.
*/
func (s *Server) begin(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.requests++
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return false
		}
	}
	if fail {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unit is overloaded"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
