package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/marketwell/payhub/libs/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// RootCmd is the base command (what the binary is called)
	RootCmd = &cobra.Command{
		Use:   "payhub",
		Short: "payhub orchestrates payment transactions for the back office",
	}

	ctx = context.Background()

	version   string
	commit    string
	buildTime string
)

// Must helper to make sure there is no errors
func Must(err error) {
	if err != nil {
		fmt.Printf("failed to initialize: %s\n", err.Error())
		// exit with failure
		os.Exit(1)
	}
}

// Execute - the main entrypoint for all subcommands in payhub
func Execute(v, c, bt string) {
	version, commit, buildTime = v, c, bt

	level := zerolog.InfoLevel
	if viper.GetBool("debug") {
		level = zerolog.DebugLevel
	}

	var logger *zerolog.Logger
	ctx, logger = logging.SetupLogger(ctx, logging.Config{
		Env:   viper.GetString("environment"),
		Level: level,
	})

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("./payhub command encountered an error")
		os.Exit(1)
	}
}

func init() {
	// env - defaults to local
	RootCmd.PersistentFlags().String("environment", "local",
		"the default environment")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	// debug logging - defaults to off
	RootCmd.PersistentFlags().Bool("debug", false, "turn on debug logging")
	Must(viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug")))
	Must(viper.BindEnv("debug", "DEBUG"))

	// sentry dsn - defaults to off
	RootCmd.PersistentFlags().String("sentry-dsn", "", "the sentry dsn for error reporting")
	Must(viper.BindPFlag("sentry-dsn", RootCmd.PersistentFlags().Lookup("sentry-dsn")))
	Must(viper.BindEnv("sentry-dsn", "SENTRY_DSN"))

	RootCmd.AddCommand(VersionCmd)
}

// VersionCmd is the command to get the code's version information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "get the version of this binary",
	Run: func(command *cobra.Command, args []string) {
		fmt.Printf("version: %s\ncommit: %s\nbuild time: %s\n",
			version, commit, buildTime,
		)
	},
}
