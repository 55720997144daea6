package scoreboard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fruitslash/scorekeeper/ao"
	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/endpoint"
	"github.com/fruitslash/scorekeeper/executor"
	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/store"
	"github.com/fruitslash/scorekeeper/testutils/aoserver"
	testlogger "github.com/fruitslash/scorekeeper/testutils/logger"
)

const testProcessID = "test-process"

func newTestClient(t *testing.T, endpoints []string, opts ...Option) *Client {
	t.Helper()
	r, err := endpoint.New(endpoints)
	require.NoError(t, err)
	log := testlogger.New(t)
	exec, err := NewExecutor(r, executor.WithBackoff(time.Millisecond), executor.WithAttemptTimeout(time.Second), executor.WithLogger(log))
	require.NoError(t, err)
	c, err := NewClient(testProcessID, exec, log, opts...)
	require.NoError(t, err)
	return c
}

func newTestSigner(t *testing.T) crypto.Signer {
	t.Helper()
	signer, err := crypto.NewInMemorySecp256K1Signer()
	require.NoError(t, err)
	return signer
}

func TestNewClient(t *testing.T) {
	r, err := endpoint.New([]string{"http://localhost"})
	require.NoError(t, err)
	exec, err := NewExecutor(r)
	require.NoError(t, err)
	log := testlogger.New(t)

	_, err = NewClient("", exec, log)
	require.EqualError(t, err, "process id must be assigned")
	_, err = NewClient(testProcessID, nil, log)
	require.EqualError(t, err, "executor must be assigned")
	_, err = NewClient(testProcessID, exec, nil)
	require.EqualError(t, err, "logger must be assigned")

	c, err := NewClient(testProcessID, exec, log)
	require.NoError(t, err)
	require.Empty(t, c.Identity())
	require.Equal(t, testProcessID, c.ProcessID())

	signer := newTestSigner(t)
	c, err = NewClient(testProcessID, exec, log, WithSigner(signer))
	require.NoError(t, err)
	require.Len(t, c.Identity(), 68)
}

func TestClient_SubmitScore(t *testing.T) {
	t.Run("without signer", func(t *testing.T) {
		srv := aoserver.New(t)
		c := newTestClient(t, []string{srv.URL})
		rcpt, err := c.SubmitScore(context.Background(), 100)
		require.ErrorIs(t, err, ErrSigningUnavailable)
		require.Nil(t, rcpt)
		require.Zero(t, srv.Requests(), "nothing must be sent without signature")
	})

	t.Run("success", func(t *testing.T) {
		srv := aoserver.New(t)
		journal, err := store.New(filepath.Join(t.TempDir(), store.BoltStoreFileName))
		require.NoError(t, err)
		defer journal.Close()
		c := newTestClient(t, []string{srv.URL}, WithSigner(newTestSigner(t)), WithJournal(journal))

		rcpt, err := c.SubmitScore(context.Background(), 1500)
		require.NoError(t, err)
		require.NotEmpty(t, rcpt.ID)

		msgs := srv.Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, rcpt.ID, msgs[0].ID)
		require.Equal(t, testProcessID, msgs[0].Target)
		require.Equal(t, c.Identity(), msgs[0].Owner.String())
		for name, want := range map[string]string{ao.TagAction: ActionSubmitScore, ao.TagScore: "1500"} {
			v, ok := msgs[0].Tags.Get(name)
			require.True(t, ok, name)
			require.Equal(t, want, v)
		}
		nonce, ok := msgs[0].Tags.Get(ao.TagNonce)
		require.True(t, ok)
		require.Len(t, nonce, 2*nonceSize)

		rec, err := journal.Do().GetSubmission(rcpt.ID)
		require.NoError(t, err)
		require.Equal(t, store.StatusSubmitted, rec.Status)
		require.Equal(t, nonce, rec.Nonce)
		require.EqualValues(t, 1500, rec.Score)
		require.Equal(t, c.Identity(), rec.Wallet)
	})

	t.Run("same signed message on every attempt", func(t *testing.T) {
		srv := aoserver.New(t)
		srv.FailNext(2)
		c := newTestClient(t, []string{srv.URL, srv.URL, srv.URL}, WithSigner(newTestSigner(t)))

		rcpt, err := c.SubmitScore(context.Background(), 7)
		require.NoError(t, err)
		require.Equal(t, 3, srv.Requests())
		msgs := srv.Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, rcpt.ID, msgs[0].ID)
	})

	t.Run("failover to healthy endpoint", func(t *testing.T) {
		dead := aoserver.New(t)
		dead.Close()
		srv := aoserver.New(t)
		c := newTestClient(t, []string{dead.URL, srv.URL}, WithSigner(newTestSigner(t)))

		_, err := c.SubmitScore(context.Background(), 7)
		require.NoError(t, err)
		require.Len(t, srv.Messages(), 1)
	})

	t.Run("all attempts fail", func(t *testing.T) {
		srv := aoserver.New(t)
		srv.FailNext(10)
		journal, err := store.New(filepath.Join(t.TempDir(), store.BoltStoreFileName))
		require.NoError(t, err)
		defer journal.Close()
		c := newTestClient(t, []string{srv.URL, srv.URL}, WithSigner(newTestSigner(t)), WithJournal(journal))

		rcpt, err := c.SubmitScore(context.Background(), 7)
		require.Nil(t, rcpt)
		var aggErr *executor.AggregateError
		require.ErrorAs(t, err, &aggErr)
		require.Equal(t, 2, aggErr.Attempts)
		require.ErrorContains(t, err, "unit is overloaded")
		require.Equal(t, 2, srv.Requests())

		recs, err := journal.Do().GetSubmissions(c.Identity())
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, store.StatusFailed, recs[0].Status)
		require.Contains(t, recs[0].Error, "all 2 attempts failed")
	})

	t.Run("signing failure is terminal", func(t *testing.T) {
		srv := aoserver.New(t)
		c := newTestClient(t, []string{srv.URL}, WithSigner(newTestSigner(t)))
		c.signer = &brokenSigner{Signer: c.signer}

		_, err := c.SubmitScore(context.Background(), 7)
		require.ErrorIs(t, err, ErrSigningUnavailable)
		require.ErrorContains(t, err, "hardware wallet unplugged")
		require.Zero(t, srv.Requests())
	})
}

func TestClient_GetLeaderboard(t *testing.T) {
	srv := aoserver.New(t)
	c := newTestClient(t, []string{srv.URL})
	ctx := context.Background()

	t.Run("no data", func(t *testing.T) {
		res, err := c.GetLeaderboard(ctx)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Empty(t, res)
	})

	t.Run("entries", func(t *testing.T) {
		srv.SetLeaderboard(`[{"wallet":"A","score":5},{"wallet":"","score":3},{"wallet":"B","score":"x"},{"wallet":"C","score":9}]`)
		res, err := c.GetLeaderboard(ctx)
		require.NoError(t, err)
		require.Len(t, res, 4)
		require.Equal(t, []leaderboard.Entry{{Wallet: "C", Score: 9}, {Wallet: "A", Score: 5}}, leaderboard.Reconcile(res))

		q := srv.Queries()
		action, _ := q[len(q)-1].Tags.Get(ao.TagAction)
		require.Equal(t, ActionGetLeaderboard, action)
	})

	t.Run("malformed", func(t *testing.T) {
		srv.SetLeaderboard(`[{"wallet":`)
		res, err := c.GetLeaderboard(ctx)
		require.ErrorIs(t, err, ErrMalformedResponse)
		require.Nil(t, res)
	})

	t.Run("process error", func(t *testing.T) {
		srv.SetProcessError("boom")
		defer srv.SetProcessError("")
		_, err := c.GetLeaderboard(ctx)
		require.ErrorIs(t, err, ao.ErrProcessFailed)
		var aggErr *executor.AggregateError
		require.ErrorAs(t, err, &aggErr)
	})
}

func TestClient_GetPlayerScore(t *testing.T) {
	srv := aoserver.New(t)
	c := newTestClient(t, []string{srv.URL})
	ctx := context.Background()

	_, err := c.GetPlayerScore(ctx, "")
	require.EqualError(t, err, "wallet must be assigned")

	ps, err := c.GetPlayerScore(ctx, "0xABC")
	require.NoError(t, err)
	require.Equal(t, &PlayerScore{Score: 0, Wallet: "0xABC"}, ps)

	srv.SetPlayerScore("0xABC", `{"score":1234,"wallet":"0xABC"}`)
	ps, err = c.GetPlayerScore(ctx, "0xABC")
	require.NoError(t, err)
	require.Equal(t, &PlayerScore{Score: 1234, Wallet: "0xABC"}, ps)

	q := srv.Queries()
	w, ok := q[len(q)-1].Tags.Get(ao.TagWallet)
	require.True(t, ok)
	require.Equal(t, "0xABC", w)

	srv.SetPlayerScore("0xABC", `"oops"`)
	_, err = c.GetPlayerScore(ctx, "0xABC")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_SubmitThenLeaderboard(t *testing.T) {
	srv := aoserver.New(t)
	srv.SetEntries(aoserver.Entry{Wallet: "0xOTHER", Score: 50})
	c := newTestClient(t, []string{srv.URL}, WithSigner(newTestSigner(t)))
	ctx := context.Background()

	_, err := c.SubmitScore(ctx, 70)
	require.NoError(t, err)

	raw, err := c.GetLeaderboard(ctx)
	require.NoError(t, err)
	view := leaderboard.Reconcile(raw)
	require.Len(t, view, 2)
	require.Equal(t, c.Identity(), view[0].Wallet)
	require.EqualValues(t, 70, view[0].Score)

	ps, err := c.GetPlayerScore(ctx, c.Identity())
	require.NoError(t, err)
	require.EqualValues(t, 70, ps.Score)
}

type brokenSigner struct {
	crypto.Signer
}

func (brokenSigner) SignBytes([]byte) ([]byte, error) {
	return nil, errors.New("hardware wallet unplugged")
}
