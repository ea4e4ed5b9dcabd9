package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/results-ingest/internal/app"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

func runCmd(opts *rootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a date range once and exit.",
		Long: `Ingest every day from --from to --to (inclusive, YYYY-MM-DD).

Without flags the range is the last DEFAULT_RANGE_DAYS days ending today.
Days that fail are reported but do not change the exit status; the command
fails only when the run itself cannot complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			start, end := cfg.DefaultRange(time.Now())

			var err error
			if from != "" {
				if start, err = query.ParseDay(from, cfg.Location()); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if end, err = query.ParseDay(to, cfg.Location()); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			ctx := cmd.Context()
			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := app.Migrate(ctx, a.Store); err != nil {
				return err
			}

			report, err := a.Orchestrator.Run(ctx, start, end)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d/%d days ingested, %d events, %d failed\n",
				report.RunID, report.Succeeded, report.Queries, report.Events, report.Failed)
			for _, f := range report.Failures {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s %s: %v\n", f.Query.Date(), f.Stage, f.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to ingest (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to ingest (YYYY-MM-DD)")

	return cmd
}
