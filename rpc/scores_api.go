package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fruitslash/scorekeeper/ao"
	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/executor"
	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/logger"
	"github.com/fruitslash/scorekeeper/scoreboard"
)

const (
	paramTop    = "top"
	paramScore  = "score"
	paramWallet = "wallet"

	// path value which refers to the identity of the local key store
	walletMe = "me"
)

type (
	ScoreService interface {
		Identity() string
		ProcessID() string
		SubmitScore(ctx context.Context, score uint64) (*ao.Receipt, error)
		GetPlayerScore(ctx context.Context, wallet string) (*scoreboard.PlayerScore, error)
	}

	Board interface {
		Current() leaderboard.View
		Refresh(ctx context.Context) (leaderboard.View, error)
	}

	scoresAPI struct {
		scores    ScoreService
		board     Board
		endpoints []string
		rw        *ResponseWriter
		log       *slog.Logger
	}

	LeaderboardResponse struct {
		Status       leaderboard.State `json:"status"`
		Entries      []EntryResponse   `json:"entries"`
		Updated      *time.Time        `json:"updated,omitempty"`
		NewHighScore *bool             `json:"newHighScore,omitempty"`
	}

	EntryResponse struct {
		Rank        int     `json:"rank"`
		Wallet      string  `json:"wallet"`
		Address     string  `json:"address"`
		Score       float64 `json:"score"`
		LastUpdated string  `json:"lastUpdated"`
		Own         bool    `json:"own"`
	}

	SubmitScoreRequest struct {
		Score uint64 `json:"score"`
	}

	SubmitScoreResponse struct {
		Receipt      *ao.Receipt         `json:"receipt"`
		NewHighScore bool                `json:"newHighScore"`
		Leaderboard  LeaderboardResponse `json:"leaderboard"`
	}

	InfoResponse struct {
		Identity  string   `json:"identity,omitempty"`
		Address   string   `json:"address"`
		ProcessID string   `json:"processId"`
		Endpoints []string `json:"endpoints"`
	}
)

/*
ScoresEndpoints registers the leaderboard, player score and score submission
handlers.
*/
func ScoresEndpoints(scores ScoreService, board Board, endpoints []string, log *slog.Logger) RegistrarFunc {
	api := &scoresAPI{
		scores:    scores,
		board:     board,
		endpoints: endpoints,
		rw:        &ResponseWriter{Log: log},
		log:       log,
	}
	return func(r *mux.Router) {
		r.HandleFunc("/leaderboard", api.getLeaderboard).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/players/{wallet}/score", api.getPlayerScore).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/scores", api.submitScore).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/info", api.getInfo).Methods(http.MethodGet, http.MethodOptions)
	}
}

func (api *scoresAPI) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	top, err := parseTop(qp.Get(paramTop))
	if err != nil {
		api.rw.InvalidParamResponse(w, r, paramTop, err)
		return
	}
	var candidate *float64
	if s := qp.Get(paramScore); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			api.rw.InvalidParamResponse(w, r, paramScore, err)
			return
		}
		candidate = &v
	}

	view, err := api.board.Refresh(r.Context())
	if err != nil {
		api.rw.WriteErrorResponse(w, r, err)
		return
	}
	rsp := api.leaderboardResponse(view, top)
	if candidate != nil {
		nhs := leaderboard.IsNewHighScore(*candidate, view.Entries)
		rsp.NewHighScore = &nhs
	}
	api.rw.WriteResponse(w, r, rsp)
}

func (api *scoresAPI) getPlayerScore(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)[paramWallet]
	if wallet == walletMe {
		if wallet = api.scores.Identity(); wallet == "" {
			api.rw.WriteErrorResponse(w, r, crypto.ErrSigningUnavailable)
			return
		}
	}
	ps, err := api.scores.GetPlayerScore(r.Context(), wallet)
	if err != nil {
		// unreachable process, answer from the board when the wallet is on it
		var aggErr *executor.AggregateError
		if e, ok := leaderboard.Best(api.board.Current().Entries, wallet); ok && errors.As(err, &aggErr) {
			api.log.WarnContext(r.Context(), "loading player score, using leaderboard entry", logger.Error(err), logger.Wallet(wallet))
			api.rw.WriteResponse(w, r, &scoreboard.PlayerScore{Score: e.Score, Wallet: e.Wallet})
			return
		}
		api.rw.WriteErrorResponse(w, r, err)
		return
	}
	api.rw.WriteResponse(w, r, ps)
}

/*
submitScore submits the score of finished game and refreshes the leaderboard.
Whether the score is new high score is decided using the leaderboard as it
was before the submission.
*/
func (api *scoresAPI) submitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.rw.ErrorResponse(w, r, http.StatusBadRequest, fmt.Errorf("failed to decode request body: %w", err))
		return
	}
	if req.Score == 0 {
		api.rw.InvalidParamResponse(w, r, paramScore, errInvalidScore)
		return
	}
	if api.scores.Identity() == "" {
		api.rw.WriteErrorResponse(w, r, crypto.ErrSigningUnavailable)
		return
	}

	before := api.board.Current()
	if before.State != leaderboard.StateReady && before.State != leaderboard.StateEmpty {
		// best effort, when it fails the entries of the last successful
		// refresh (or stored snapshot) are used
		before, _ = api.board.Refresh(r.Context())
	}
	nhs := leaderboard.IsNewHighScore(float64(req.Score), before.Entries)

	rcpt, err := api.scores.SubmitScore(r.Context(), req.Score)
	if err != nil {
		api.rw.WriteErrorResponse(w, r, err)
		return
	}

	after, err := api.board.Refresh(r.Context())
	if err != nil {
		// the score has been submitted, report the stale view
		api.log.WarnContext(r.Context(), "refreshing leaderboard after submission", logger.Error(err))
	}
	api.rw.WriteResponse(w, r, SubmitScoreResponse{
		Receipt:      rcpt,
		NewHighScore: nhs,
		Leaderboard:  api.leaderboardResponse(after, 0),
	})
}

func (api *scoresAPI) getInfo(w http.ResponseWriter, r *http.Request) {
	id := api.scores.Identity()
	api.rw.WriteResponse(w, r, InfoResponse{
		Identity:  id,
		Address:   leaderboard.FormatAddress(id),
		ProcessID: api.scores.ProcessID(),
		Endpoints: api.endpoints,
	})
}

func (api *scoresAPI) leaderboardResponse(view leaderboard.View, top int) LeaderboardResponse {
	me := api.scores.Identity()
	entries := leaderboard.Top(view.Entries, top)
	rsp := LeaderboardResponse{Status: view.State, Entries: make([]EntryResponse, len(entries))}
	if !view.Updated.IsZero() {
		rsp.Updated = &view.Updated
	}
	for i, e := range entries {
		rsp.Entries[i] = EntryResponse{
			Rank:        i + 1,
			Wallet:      e.Wallet,
			Address:     leaderboard.FormatAddress(e.Wallet),
			Score:       e.Score,
			LastUpdated: leaderboard.FormatDate(e.LastUpdated),
			Own:         leaderboard.IsOwn(e, me),
		}
	}
	return rsp
}

func parseTop(s string) (int, error) {
	if s == "" {
		return leaderboard.DefaultTop, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
