package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fruitslash/scorekeeper/rpc"
	"github.com/fruitslash/scorekeeper/testutils/aoserver"
	testnet "github.com/fruitslash/scorekeeper/testutils/net"
)

func TestServeCmd(t *testing.T) {
	homeDir := t.TempDir()
	createTestKeys(t, homeDir)
	srv := aoserver.New(t)
	srv.SetEntries(aoserver.Entry{Wallet: "wallet-aaaa-1111", Score: 10, LastUpdated: "2024-03-01T10:00:00Z"})

	addr := testnet.GetFreeLocalAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		args := append([]string{"serve", "--address", addr, "--refresh-interval", "0"}, clientArgs(homeDir, srv)...)
		_, err := execCmd(ctx, t, args...)
		done <- err
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve command didn't stop")
		}
	})

	baseURL := "http://" + addr
	require.Eventually(t, func() bool {
		rsp, err := http.Get(baseURL + "/api/v1/info")
		if err != nil {
			return false
		}
		defer rsp.Body.Close()
		return rsp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	t.Run("info", func(t *testing.T) {
		var info rpc.InfoResponse
		getJSON(t, baseURL+"/api/v1/info", http.StatusOK, &info)
		require.Equal(t, testIdentity, info.Identity)
		require.Equal(t, "0x03...aca3", info.Address)
		require.Equal(t, testProcessID, info.ProcessID)
		require.Equal(t, []string{srv.URL}, info.Endpoints)
	})

	t.Run("submit score", func(t *testing.T) {
		rsp, err := http.Post(baseURL+"/api/v1/scores", "application/json", strings.NewReader(`{"score": 25}`))
		require.NoError(t, err)
		defer rsp.Body.Close()
		require.Equal(t, http.StatusOK, rsp.StatusCode)

		var res rpc.SubmitScoreResponse
		require.NoError(t, json.NewDecoder(rsp.Body).Decode(&res))
		require.True(t, res.NewHighScore)
		require.NotNil(t, res.Receipt)
		require.Len(t, srv.Messages(), 1)
		require.Equal(t, srv.Messages()[0].ID, res.Receipt.ID)
		require.Len(t, res.Leaderboard.Entries, 2)
		require.Equal(t, testIdentity, res.Leaderboard.Entries[0].Wallet)
		require.True(t, res.Leaderboard.Entries[0].Own)
	})

	t.Run("leaderboard", func(t *testing.T) {
		var lb rpc.LeaderboardResponse
		getJSON(t, baseURL+"/api/v1/leaderboard?top=1", http.StatusOK, &lb)
		require.Len(t, lb.Entries, 1)
		require.EqualValues(t, 25, lb.Entries[0].Score)
	})

	t.Run("metrics", func(t *testing.T) {
		rsp, err := http.Get(baseURL + "/metrics")
		require.NoError(t, err)
		defer rsp.Body.Close()
		body, err := io.ReadAll(rsp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `scorekeeper_rest_api_calls_total{code="200",route="/api/v1/info"}`)
		require.Contains(t, string(body), "go_goroutines")
	})
}

func TestWriteTimeout(t *testing.T) {
	var tests = []struct {
		name string
		conf clientConfiguration
		want time.Duration
	}{
		{
			name: "defaults, one attempt per endpoint",
			conf: clientConfiguration{Endpoints: defaultEndpoints, AttemptTimeout: 30 * time.Second, Backoff: time.Second},
			want: 3*3*31*time.Second + writeTimeoutSlack,
		},
		{
			name: "max retries overrides pool size",
			conf: clientConfiguration{Endpoints: defaultEndpoints, MaxRetries: 5, AttemptTimeout: 30 * time.Second, Backoff: time.Second},
			want: 3*5*31*time.Second + writeTimeoutSlack,
		},
		{
			name: "single endpoint",
			conf: clientConfiguration{Endpoints: []string{"https://cu.example.org"}, AttemptTimeout: time.Second},
			want: 3*time.Second + writeTimeoutSlack,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, writeTimeout(&tt.conf))
		})
	}
	// with the defaults score submission takes longer than the server default
	require.Greater(t, writeTimeout(&tests[0].conf), rpc.DefaultWriteTimeout)
}

func getJSON(t *testing.T, url string, code int, v any) {
	t.Helper()
	rsp, err := http.Get(url)
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, code, rsp.StatusCode)
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(v))
}
