package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fruitslash/scorekeeper/leaderboard"
	"github.com/fruitslash/scorekeeper/wallet/account"
)

const (
	mnemonicCmdName       = "mnemonic"
	showMnemonicCmdName   = "show-mnemonic"
	passwordPromptCmdName = "password"
	passwordPromptUsage   = "password (interactive from prompt)"
)

func newKeysCmd(config *baseConfiguration) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "manages the player identity key",
	}
	keysCmd.AddCommand(createKeysCmd(config))
	keysCmd.AddCommand(showKeysCmd(config))
	return keysCmd
}

func createKeysCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "creates new identity key, from mnemonic when given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execCreateKeysCmd(cmd, config)
		},
	}
	cmd.Flags().StringP(mnemonicCmdName, "s", "", "mnemonic seed, the number of words should be 12, 15, 18, 21 or 24")
	cmd.Flags().BoolP(passwordPromptCmdName, "p", false, passwordPromptUsage)
	return cmd
}

func execCreateKeysCmd(cmd *cobra.Command, config *baseConfiguration) error {
	mnemonic, err := cmd.Flags().GetString(mnemonicCmdName)
	if err != nil {
		return err
	}
	password, err := createPassphrase(cmd)
	if err != nil {
		return err
	}
	am, err := account.NewManager(config.HomeDir, password, true)
	if err != nil {
		return fmt.Errorf("creating key store: %w", err)
	}
	defer am.Close()

	consoleWriter.Println("Creating new identity key...")
	usedMnemonic, err := am.CreateKeys(mnemonic)
	if err != nil {
		return err
	}
	identity, err := am.Identity()
	if err != nil {
		return err
	}
	consoleWriter.Println("Identity key created successfully: " + identity)

	// print mnemonic if new one was generated
	if mnemonic == "" {
		consoleWriter.Println("The following mnemonic key can be used to recover your identity. Please write it down now, and keep it in a safe, offline place.")
		consoleWriter.Println("mnemonic key: " + usedMnemonic)
	}
	return nil
}

func showKeysCmd(config *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "shows the identity of the key store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execShowKeysCmd(cmd, config)
		},
	}
	cmd.Flags().Bool(showMnemonicCmdName, false, "shows also the mnemonic seed of the key store")
	return cmd
}

func execShowKeysCmd(cmd *cobra.Command, config *baseConfiguration) error {
	showMnemonic, err := cmd.Flags().GetBool(showMnemonicCmdName)
	if err != nil {
		return err
	}
	am, err := config.openAccountManager(cmd)
	if err != nil {
		return err
	}
	defer am.Close()

	identity, err := am.Identity()
	if err != nil {
		return fmt.Errorf("reading identity: %w", err)
	}
	consoleWriter.Println("Identity: " + identity)
	consoleWriter.Println("Address: " + leaderboard.FormatAddress(identity))
	consoleWriter.Println("Key store: " + filepath.Join(config.HomeDir, account.AccountFileName))
	if showMnemonic {
		m, err := am.GetMnemonic()
		if err != nil {
			return fmt.Errorf("reading mnemonic: %w", err)
		}
		consoleWriter.Println("mnemonic key: " + m)
	}
	return nil
}

func createPassphrase(cmd *cobra.Command) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	passwordFlag, err := cmd.Flags().GetBool(passwordPromptCmdName)
	if err != nil {
		return "", err
	}
	if !passwordFlag {
		return "", nil
	}
	p1, err := readPassword("Create new passphrase: ")
	if err != nil {
		return "", err
	}
	p2, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passphrases do not match")
	}
	return p1, nil
}

func getPassphrase(cmd *cobra.Command, promptMessage string) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	return readPassword(promptMessage)
}

func readPassword(promptMessage string) (string, error) {
	consoleWriter.Print(promptMessage)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	consoleWriter.Println("") // line break after reading password
	return string(passwordBytes), nil
}
