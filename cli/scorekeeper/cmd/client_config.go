package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/endpoint"
	"github.com/fruitslash/scorekeeper/executor"
	"github.com/fruitslash/scorekeeper/scoreboard"
	"github.com/fruitslash/scorekeeper/store"
	"github.com/fruitslash/scorekeeper/wallet/account"
)

const (
	flagNameEndpoints      = "endpoints"
	flagNameProcessID      = "process-id"
	flagNameMaxRetries     = "max-retries"
	flagNameAttemptTimeout = "attempt-timeout"
	flagNameBackoff        = "backoff"

	passwordArgCmdName = "pn"
	passwordArgUsage   = "password (non-interactive from args)"
)

var defaultEndpoints = []string{
	"https://cu.ao-testnet.xyz",
	"https://cu1.ao-testnet.xyz",
	"https://cu24.ao-testnet.xyz",
}

// clientConfiguration describes how to reach the scoring process.
type clientConfiguration struct {
	Endpoints      []string
	ProcessID      string
	MaxRetries     int
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

func (c *clientConfiguration) addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringSliceVar(&c.Endpoints, flagNameEndpoints, defaultEndpoints, "compute unit endpoints, tried in round-robin order")
	cmd.PersistentFlags().StringVar(&c.ProcessID, flagNameProcessID, scoreboard.DefaultProcessID, "id of the scoring process")
	cmd.PersistentFlags().IntVar(&c.MaxRetries, flagNameMaxRetries, 0, "total number of attempts of a request (default is the number of endpoints)")
	cmd.PersistentFlags().DurationVar(&c.AttemptTimeout, flagNameAttemptTimeout, executor.DefaultAttemptTimeout, "timeout of single attempt")
	cmd.PersistentFlags().DurationVar(&c.Backoff, flagNameBackoff, executor.DefaultBackoff, "delay between attempts")
	cmd.PersistentFlags().String(passwordArgCmdName, "", passwordArgUsage)
}

/*
requestTimeout returns the worst case duration of single request to the
scoring process, ie every attempt times out and is followed by back-off.
*/
func (c *clientConfiguration) requestTimeout() time.Duration {
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = len(c.Endpoints)
	}
	return time.Duration(attempts) * (c.AttemptTimeout + c.Backoff)
}

/*
newScoreClient builds the scoring process client. Signer and journal are
optional, without signer the client can only query.
*/
func (r *baseConfiguration) newScoreClient(signer crypto.Signer, journal scoreboard.Journal) (*scoreboard.Client, error) {
	rotator, err := endpoint.New(r.Client.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoints: %w", err)
	}
	exec, err := scoreboard.NewExecutor(rotator,
		executor.WithMaxRetries(r.Client.MaxRetries),
		executor.WithAttemptTimeout(r.Client.AttemptTimeout),
		executor.WithBackoff(r.Client.Backoff),
		executor.WithLogger(r.Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating executor: %w", err)
	}
	var opts []scoreboard.Option
	if signer != nil {
		opts = append(opts, scoreboard.WithSigner(signer))
	}
	if journal != nil {
		opts = append(opts, scoreboard.WithJournal(journal))
	}
	return scoreboard.NewClient(r.Client.ProcessID, exec, r.Logger(), opts...)
}

/*
loadSigner opens the key store in the home directory. When the key store
doesn't exist nil signer is returned, callers decide whether they can
work read-only.
*/
func (r *baseConfiguration) loadSigner(cmd *cobra.Command) (crypto.Signer, error) {
	if _, err := os.Stat(filepath.Join(r.HomeDir, account.AccountFileName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking key store: %w", err)
	}
	am, err := r.openAccountManager(cmd)
	if err != nil {
		return nil, err
	}
	defer am.Close()

	signer, err := am.Signer()
	if errors.Is(err, crypto.ErrSigningUnavailable) {
		return nil, nil
	}
	return signer, err
}

func (r *baseConfiguration) openAccountManager(cmd *cobra.Command) (*account.Manager, error) {
	pw, err := r.keyStorePassword(cmd)
	if err != nil {
		return nil, err
	}
	am, err := account.NewManager(r.HomeDir, pw, false)
	if err != nil {
		return nil, fmt.Errorf("opening key store: %w", err)
	}
	return am, nil
}

func (r *baseConfiguration) keyStorePassword(cmd *cobra.Command) (string, error) {
	encrypted, err := account.IsEncrypted(r.HomeDir)
	if err != nil {
		return "", fmt.Errorf("failed to check if key store is encrypted: %w", err)
	}
	if !encrypted {
		return "", nil
	}
	return getPassphrase(cmd, "Enter passphrase: ")
}

// openJournal opens the local journal, creating home directory if needed.
func (r *baseConfiguration) openJournal() (*store.BoltStore, error) {
	if err := os.MkdirAll(r.HomeDir, 0700); err != nil {
		return nil, fmt.Errorf("creating home directory: %w", err)
	}
	db, err := store.New(filepath.Join(r.HomeDir, store.BoltStoreFileName))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return db, nil
}
