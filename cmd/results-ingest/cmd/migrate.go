package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/results-ingest/internal/app"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the event store schema and indexes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.OpenStore(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := app.Migrate(cmd.Context(), st); err != nil {
				return err
			}
			if err := st.EnsureUniqueIndex(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
