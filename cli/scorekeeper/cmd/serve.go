package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/rpc"
)

const (
	addressCmdName         = "address"
	refreshIntervalCmdName = "refresh-interval"
	maxBodyCmdName         = "max-body-size"

	defaultServerAddr = "localhost:8787"

	// score submission handler refreshes the board, submits and refreshes again
	maxChainedRequests = 3
	writeTimeoutSlack  = 10 * time.Second
)

type serveConfiguration struct {
	Base            *baseConfiguration
	Address         string
	RefreshInterval time.Duration
	MaxBodySize     int64
}

func newServeCmd(config *baseConfiguration) *cobra.Command {
	conf := &serveConfiguration{Base: config}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "runs the REST API for the game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execServeCmd(cmd, conf)
		},
	}
	cmd.Flags().StringVar(&conf.Address, addressCmdName, defaultServerAddr, "address the REST API listens on")
	cmd.Flags().DurationVar(&conf.RefreshInterval, refreshIntervalCmdName, time.Minute, "how often the leaderboard is refreshed in the background, zero disables background refresh")
	cmd.Flags().Int64Var(&conf.MaxBodySize, maxBodyCmdName, rpc.DefaultMaxBodySize, "maximum size of the request body in bytes")
	return cmd
}

func execServeCmd(cmd *cobra.Command, conf *serveConfiguration) error {
	config := conf.Base
	log := config.Logger()

	signer, err := config.loadSigner(cmd)
	if err != nil {
		return err
	}
	if signer == nil {
		log.Warn("no identity key found, scores can't be submitted")
	}

	journal, err := config.openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	client, err := config.newScoreClient(signer, journal)
	if err != nil {
		return err
	}
	board, err := leaderboard.NewBoard(client.GetLeaderboard, journal, log)
	if err != nil {
		return err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := rpc.NewRESTServer(
		rpc.ServerConfig{
			Addr:         conf.Address,
			MaxBodySize:  conf.MaxBodySize,
			WriteTimeout: writeTimeout(&config.Client),
		},
		metrics,
		log,
		rpc.ScoresEndpoints(client, board, config.Client.Endpoints, log),
	)

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		log.InfoContext(ctx, fmt.Sprintf("REST API listening on %s", srv.Addr))
		return httpsrv.Run(ctx, *srv, httpsrv.ShutdownTimeout(5*time.Second))
	})

	g.Go(func() error {
		refreshLoop(ctx, board, conf.RefreshInterval)
		return nil
	})

	// cancelling the context is the normal way to stop the server
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// writeTimeout returns REST API write timeout long enough for the handler
// making the most requests to the scoring process.
func writeTimeout(c *clientConfiguration) time.Duration {
	return maxChainedRequests*c.requestTimeout() + writeTimeoutSlack
}

/*
refreshLoop refreshes the leaderboard immediately and then on every "interval"
until ctx is cancelled. Failed refresh leaves the board in error state until
the next successful one.
*/
func refreshLoop(ctx context.Context, board *leaderboard.Board, interval time.Duration) {
	_, _ = board.Refresh(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = board.Refresh(ctx)
		}
	}
}
