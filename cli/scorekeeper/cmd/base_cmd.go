package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type scorekeeperApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates a new Scorekeeper application
func New(logF LoggerFactory) *scorekeeperApp {
	baseCmd, baseConfig := newBaseCmd(logF)
	return &scorekeeperApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *scorekeeperApp) Execute(ctx context.Context) error {
	return a.addAndExecuteCommand(ctx)
}

func (a *scorekeeperApp) addAndExecuteCommand(ctx context.Context) error {
	a.baseCmd.AddCommand(newServeCmd(a.baseConfig))
	a.baseCmd.AddCommand(newSubmitCmd(a.baseConfig))
	a.baseCmd.AddCommand(newLeaderboardCmd(a.baseConfig))
	a.baseCmd.AddCommand(newPlayerCmd(a.baseConfig))
	a.baseCmd.AddCommand(newHistoryCmd(a.baseConfig))
	a.baseCmd.AddCommand(newKeysCmd(a.baseConfig))
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd(logF LoggerFactory) (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{loggerBuilder: logF}
	// baseCmd represents the base command when called without any subcommands
	var baseCmd = &cobra.Command{
		Use:           "scorekeeper",
		Short:         "The scorekeeper CLI",
		Long:          `The scorekeeper CLI submits game scores to the scoring process, shows the leaderboard and serves the local REST API for the game.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// If subcommand does not define PersistentPreRunE, the one from base cmd is used.
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	// logger is initialized even when reading configuration fails, it is
	// needed to report the error
	errCfg := config.initializeConfig(cmd)
	if errCfg != nil {
		errCfg = fmt.Errorf("reading configuration: %w", errCfg)
	}

	var errLog error
	if config.logger, errLog = config.initLogger(cmd); errLog != nil {
		errLog = fmt.Errorf("initializing logger: %w", errLog)
	}

	return errors.Join(errCfg, errLog)
}

// initializeConfig reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	config.initConfigFileLocation()

	if config.configFileExists() {
		v.SetConfigFile(config.CfgFile)
	}

	// Attempt to read the config file, gracefully ignoring errors
	// caused by a config file not being found. Return an error
	// if we cannot parse the config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if there isn't a config file
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// When we bind flags to environment variables expect that the
	// environment variables are prefixed, e.g. a flag like --score
	// binds to an environment variable SK_SCORE.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}

		// Environment variables can't have dashes in them, so bind them to their equivalent
		// keys with underscores, e.g. --process-id to SK_PROCESS_ID
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			if err := setFlagValue(cmd.Flags(), f, v.Get(f.Name)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})

	return errors.Join(bindFlagErr...)
}

/*
setFlagValue sets value from config to the flag. Slice flags accept comma
separated list, viper returns slices for values loaded from yaml/json
config files.
*/
func setFlagValue(fs *pflag.FlagSet, f *pflag.Flag, val any) error {
	if items, ok := val.([]any); ok {
		s := make([]string, len(items))
		for i, item := range items {
			s[i] = fmt.Sprintf("%v", item)
		}
		return fs.Set(f.Name, strings.Join(s, ","))
	}
	return fs.Set(f.Name, fmt.Sprintf("%v", val))
}
