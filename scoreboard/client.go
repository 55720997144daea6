/*
Package scoreboard implements client of the remote scoring process: signed
score submissions and read-only leaderboard queries.
*/
package scoreboard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fruitslash/scorekeeper/ao"
	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/executor"
	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/logger"
	"github.com/fruitslash/scorekeeper/store"
)

// DefaultProcessID is the scoring process of the game.
const DefaultProcessID = "xKemU2pWkIh7RVKqPvjqfs71-UNRD4R5jitexQfAYeY"

const (
	ActionSubmitScore    = "SubmitScore"
	ActionGetLeaderboard = "GetLeaderboard"
	ActionGetPlayerScore = "GetPlayerScore"

	nonceSize = 16
)

var ErrSigningUnavailable = crypto.ErrSigningUnavailable

type (
	// Journal records the submissions made by the client.
	Journal interface {
		SetSubmission(rec *store.Submission) error
	}

	PlayerScore struct {
		Score  float64 `json:"score"`
		Wallet string  `json:"wallet"`
	}

	Client struct {
		processID string
		exec      *executor.Executor[*ao.Client]
		signer    crypto.Signer
		identity  string
		journal   Journal
		log       *slog.Logger
		now       func() time.Time
	}

	Option func(*Client)
)

/*
NewExecutor returns executor which binds AO client to the endpoints.
*/
func NewExecutor(endpoints executor.Endpoints, opts ...executor.Option) (*executor.Executor[*ao.Client], error) {
	return executor.New(endpoints, ao.New, opts...)
}

// WithSigner sets identity used to sign submissions.
func WithSigner(signer crypto.Signer) Option {
	return func(c *Client) {
		c.signer = signer
	}
}

func WithJournal(j Journal) Option {
	return func(c *Client) {
		c.journal = j
	}
}

/*
NewClient returns client of the process "processID" which uses "exec" to talk
to the compute units. Without signer the client is read-only.
*/
func NewClient(processID string, exec *executor.Executor[*ao.Client], log *slog.Logger, opts ...Option) (*Client, error) {
	if processID == "" {
		return nil, errors.New("process id must be assigned")
	}
	if exec == nil {
		return nil, errors.New("executor must be assigned")
	}
	if log == nil {
		return nil, errors.New("logger must be assigned")
	}
	c := &Client{
		processID: processID,
		exec:      exec,
		log:       log.With(logger.Process(processID)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signer != nil {
		v, err := c.signer.Verifier()
		if err != nil {
			return nil, fmt.Errorf("reading identity of the signer: %w", err)
		}
		pub, err := v.MarshalPublicKey()
		if err != nil {
			return nil, fmt.Errorf("reading identity of the signer: %w", err)
		}
		c.identity = hexutil.Encode(pub)
	}
	return c, nil
}

// Identity returns wallet address of the signer, empty string when there is no signer.
func (c *Client) Identity() string { return c.identity }

func (c *Client) ProcessID() string { return c.processID }

/*
SubmitScore signs score message and delivers it to the process. The message
is signed once and the same message is sent on every attempt, the random
nonce tag allows the process to discard duplicate deliveries.
*/
func (c *Client) SubmitScore(ctx context.Context, score uint64) (*ao.Receipt, error) {
	if c.signer == nil {
		return nil, ErrSigningUnavailable
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	item := ao.NewDataItem(c.processID,
		ao.NewTag(ao.TagAction, ActionSubmitScore),
		ao.NewTag(ao.TagScore, strconv.FormatUint(score, 10)),
		ao.NewTag(ao.TagNonce, nonce),
	)
	if err := item.Sign(c.signer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningUnavailable, err)
	}

	log := c.log.With(logger.Wallet(c.identity), slog.String("msg_id", item.ID))
	rec := &store.Submission{ID: item.ID, Nonce: nonce, Wallet: c.identity, Score: score, Status: store.StatusPending, Created: c.now()}
	c.journalize(ctx, rec)

	rcpt, err := executor.Execute(ctx, c.exec, func(ctx context.Context, client *ao.Client) (*ao.Receipt, error) {
		return client.Send(ctx, item)
	})
	rec.Status = store.StatusSubmitted
	if err != nil {
		rec.Status, rec.Error = store.StatusFailed, err.Error()
	}
	c.journalize(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("submitting score: %w", err)
	}
	log.InfoContext(ctx, fmt.Sprintf("score %d submitted", score))
	return rcpt, nil
}

/*
GetLeaderboard queries the current leaderboard. When the process returns no
data empty list is returned, invalid data results in ErrMalformedResponse.
The entries are returned as they are, see leaderboard.Reconcile.
*/
func (c *Client) GetLeaderboard(ctx context.Context) ([]leaderboard.RawEntry, error) {
	data, ok, err := c.query(ctx, ao.NewTag(ao.TagAction, ActionGetLeaderboard))
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	return parseLeaderboard(data, ok)
}

/*
GetPlayerScore queries the score of the wallet. When the process has no record
of the wallet zero score is returned.
*/
func (c *Client) GetPlayerScore(ctx context.Context, wallet string) (*PlayerScore, error) {
	if wallet == "" {
		return nil, errors.New("wallet must be assigned")
	}
	data, ok, err := c.query(ctx, ao.NewTag(ao.TagAction, ActionGetPlayerScore), ao.NewTag(ao.TagWallet, wallet))
	if err != nil {
		return nil, fmt.Errorf("querying player score: %w", err)
	}
	return parsePlayerScore(data, ok, wallet)
}

func (c *Client) query(ctx context.Context, tags ...ao.Tag) (string, bool, error) {
	q := &ao.Query{Target: c.processID, Owner: c.identity, Tags: tags}
	res, err := executor.Execute(ctx, c.exec, func(ctx context.Context, client *ao.Client) (*ao.Result, error) {
		return client.DryRun(ctx, q)
	})
	if err != nil {
		return "", false, err
	}
	data, ok := res.FirstData()
	return data, ok, nil
}

func (c *Client) journalize(ctx context.Context, rec *store.Submission) {
	if c.journal == nil {
		return
	}
	rec.Updated = c.now()
	if err := c.journal.SetSubmission(rec); err != nil {
		c.log.WarnContext(ctx, "recording submission", logger.Error(err))
	}
}

func newNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
