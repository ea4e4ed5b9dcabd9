// Package cmd implements the results-ingest command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/results-ingest/internal/config"
	"github.com/Sternrassler/results-ingest/pkg/logging"
)

type rootOptions struct {
	logLevel  string
	logPretty bool
	cfg       *config.Config
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands are registered here.
func RootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "results-ingest",
		Short: "results-ingest downloads daily sports results and stores them for querying.",
		Long: `results-ingest downloads daily sports results and stores them for querying.

Configuration is read from environment variables (STORE_DRIVER, DATABASE_URL,
REDIS_URL, DISCOVERY_URL, MAX_PER_HOST, MAX_ATTEMPTS, ...). Flags override the
logging settings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			if cmd.Flags().Changed("log-pretty") {
				cfg.LogPretty = opts.logPretty
			}
			lc := cfg.Logging()
			lc.Output = cmd.ErrOrStderr()
			logging.Setup(lc)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.logPretty, "log-pretty", false, "human-readable console logs")

	cmd.AddCommand(
		serveCmd(opts),
		runCmd(opts),
		migrateCmd(opts),
	)

	return cmd
}
