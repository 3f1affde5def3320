package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/franz/camo/internal/registry"
	"github.com/franz/camo/internal/runner"
	"github.com/franz/camo/internal/ui"
	"github.com/franz/camo/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "camo",
		Short: "Contentful Active Migration Organiser - apply and track Contentful migrations",
		Long: `camo (Contentful Active Migration Organiser) applies migration scripts from a
local directory to a Contentful space and environment, and records every
applied migration as an entry in Contentful so it is never run twice.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./camo.yaml or ./configs/camo.yaml)")
	flags.StringP("access-token", "a", "", "Contentful management access token (falls back to 'camo login')")
	flags.StringP("space-id", "s", "", "target Contentful space ID")
	flags.StringP("environment-id", "e", registry.DefaultEnvironmentID, "target Contentful environment ID")
	flags.StringP("content-type-id", "i", registry.DefaultContentTypeID, "ID of the content type that records migrations")
	flags.StringP("content-type-name", "n", registry.DefaultContentTypeName, "name of the content type that records migrations")
	flags.String("local-directory", "migrations", "directory holding migration files")
	flags.String("ledger", ledgerContentful, "where applied migrations are recorded: contentful or sqlite")
	flags.String("ledger-db", "camo-ledger.db", "SQLite ledger file (with --ledger sqlite)")
	flags.String("migration-command", runner.DefaultCommand, "command that applies a single migration file")
	flags.String("events-dir", "artifacts", "directory for event logs and run summaries")
	flags.BoolP("yes", "y", false, "answer yes to every confirmation")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.BoolP("quiet", "q", false, "quiet output (errors only)")

	for _, key := range []string{
		"access-token", "space-id", "environment-id", "content-type-id", "content-type-name",
		"local-directory", "ledger", "ledger-db", "migration-command", "events-dir",
		"yes", "verbose", "quiet",
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

func initConfig() {
	// A .env file never overrides variables already set
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		util.WarnLog("Could not read .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("camo")
		viper.SetConfigType("yaml")
	}

	// CONTENTFUL_MIGRATION_SPACE_ID and friends
	viper.SetEnvPrefix("CONTENTFUL_MIGRATION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	if errors.Is(err, util.ErrAborted) {
		fmt.Fprintln(os.Stderr, ui.Aborting())
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, ui.Error("%s", exit.title))
		fmt.Fprintln(os.Stderr, util.ErrorMessage(exit.err))
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, ui.Error("%s", util.ErrorMessage(err)))
	os.Exit(1)
}
