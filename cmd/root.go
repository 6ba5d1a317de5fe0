package cmd

import (
	"context"
	"fmt"
	"os"

	"interestbatch/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Execute runs the command line interface
func Execute(ctx context.Context) error {
	return BuildCLI().ExecuteContext(ctx)
}

// BuildCLI assembles the root command and its subcommands
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "interestbatch",
		Short: "Interest batch processing engine",
		Long: `Runs daily interest accrual and periodic interest posting over
deposit accounts in bounded-parallel chunks, tracking every execution
and per-account outcome in Postgres.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging(config.Get())
		},
	}

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildMigrateCommand())
	rootCmd.AddCommand(buildTriggerCommand())
	rootCmd.AddCommand(buildCancelCommand())
	rootCmd.AddCommand(buildConfigsCommand())

	return rootCmd
}

func configureLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
