package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitslash/scorekeeper/crypto"
	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/logger"
	"github.com/fruitslash/scorekeeper/scoreboard"
)

const (
	scoreCmdName  = "score"
	topCmdName    = "top"
	walletCmdName = "wallet"
)

func newSubmitCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "submits score of a finished game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execSubmitCmd(cmd, config)
		},
	}
	cmd.Flags().Uint64(scoreCmdName, 0, "score of the game, must be greater than zero")
	_ = cmd.MarkFlagRequired(scoreCmdName)
	return cmd
}

func execSubmitCmd(cmd *cobra.Command, config *baseConfiguration) error {
	score, err := cmd.Flags().GetUint64(scoreCmdName)
	if err != nil {
		return err
	}
	if score == 0 {
		return errors.New("score must be greater than zero")
	}

	signer, err := config.loadSigner(cmd)
	if err != nil {
		return err
	}
	if signer == nil {
		return fmt.Errorf("%w: no identity key, create one with 'keys create'", scoreboard.ErrSigningUnavailable)
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

	ctx := cmd.Context()
	// new high score is decided against the leaderboard before the submission
	var before []leaderboard.Entry
	if raw, err := client.GetLeaderboard(ctx); err != nil {
		config.Logger().WarnContext(ctx, "loading leaderboard before submission", logger.Error(err))
	} else {
		before = leaderboard.Reconcile(raw)
	}

	rcpt, err := client.SubmitScore(ctx, score)
	if err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("Score %d submitted, message id: %s", score, rcpt.ID))
	if leaderboard.IsNewHighScore(float64(score), before) {
		consoleWriter.Println("New high score!")
	}
	return nil
}

func newLeaderboardCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "shows the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execLeaderboardCmd(cmd, config)
		},
	}
	cmd.Flags().Int(topCmdName, leaderboard.DefaultTop, "number of top entries to show")
	cmd.Flags().Float64(scoreCmdName, 0, "when set, tells whether the score would be new high score")
	return cmd
}

func execLeaderboardCmd(cmd *cobra.Command, config *baseConfiguration) error {
	top, err := cmd.Flags().GetInt(topCmdName)
	if err != nil {
		return err
	}
	if top < 1 {
		return fmt.Errorf("invalid %q value %d, must be positive", topCmdName, top)
	}

	signer, err := config.loadSigner(cmd)
	if err != nil {
		return err
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
	board, err := leaderboard.NewBoard(client.GetLeaderboard, journal, config.Logger())
	if err != nil {
		return err
	}

	view, err := board.Refresh(cmd.Context())
	if err != nil {
		if len(view.Entries) == 0 {
			return fmt.Errorf("loading leaderboard: %w", err)
		}
		consoleWriter.Println(fmt.Sprintf("Failed to refresh leaderboard: %v", err))
		consoleWriter.Println("Showing leaderboard from " + view.Updated.UTC().Format(time.RFC3339))
	}

	if len(view.Entries) == 0 {
		consoleWriter.Println("No scores yet. Be the first!")
	}
	for i, e := range leaderboard.Top(view.Entries, top) {
		line := fmt.Sprintf("%d. %s %s %s", i+1, leaderboard.FormatAddress(e.Wallet), formatScore(e.Score), leaderboard.FormatDate(e.LastUpdated))
		if leaderboard.IsOwn(e, client.Identity()) {
			line += " (you)"
		}
		consoleWriter.Println(line)
	}

	if cmd.Flags().Changed(scoreCmdName) {
		candidate, err := cmd.Flags().GetFloat64(scoreCmdName)
		if err != nil {
			return err
		}
		consoleWriter.Println(fmt.Sprintf("Score %s is new high score: %t", formatScore(candidate), leaderboard.IsNewHighScore(candidate, view.Entries)))
	}
	return nil
}

func newPlayerCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "shows the score of a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execPlayerCmd(cmd, config)
		},
	}
	cmd.Flags().String(walletCmdName, "", "wallet of the player (default is the identity of the key store)")
	return cmd
}

func execPlayerCmd(cmd *cobra.Command, config *baseConfiguration) error {
	wallet, err := cmd.Flags().GetString(walletCmdName)
	if err != nil {
		return err
	}
	var signer crypto.Signer
	if wallet == "" {
		if signer, err = config.loadSigner(cmd); err != nil {
			return err
		}
		if signer == nil {
			return fmt.Errorf("%w: either use --%s flag or create identity key with 'keys create'", scoreboard.ErrSigningUnavailable, walletCmdName)
		}
	}

	client, err := config.newScoreClient(signer, nil)
	if err != nil {
		return err
	}
	if wallet == "" {
		wallet = client.Identity()
	}
	ps, err := client.GetPlayerScore(cmd.Context(), wallet)
	if err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("Player %s score: %s", leaderboard.FormatAddress(ps.Wallet), formatScore(ps.Score)))
	return nil
}

func newHistoryCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "lists the scores submitted from this computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execHistoryCmd(cmd, config)
		},
	}
	cmd.Flags().String(walletCmdName, "", "wallet of the player (default is the identity of the key store)")
	return cmd
}

func execHistoryCmd(cmd *cobra.Command, config *baseConfiguration) error {
	wallet, err := cmd.Flags().GetString(walletCmdName)
	if err != nil {
		return err
	}
	if wallet == "" {
		am, err := config.openAccountManager(cmd)
		if err != nil {
			return err
		}
		wallet, err = am.Identity()
		if err := errors.Join(err, am.Close()); err != nil {
			return fmt.Errorf("reading identity: %w", err)
		}
	}

	journal, err := config.openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	subs, err := journal.Do().GetSubmissions(wallet)
	if err != nil {
		return fmt.Errorf("reading submissions: %w", err)
	}
	if len(subs) == 0 {
		consoleWriter.Println("No submissions.")
		return nil
	}
	for _, s := range subs {
		line := fmt.Sprintf("%s %d %s %s", s.Created.UTC().Format(time.RFC3339), s.Score, s.Status, s.ID)
		if s.Error != "" {
			line += ": " + s.Error
		}
		consoleWriter.Println(line)
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
