package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetupCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// Opening the store runs the migrations.
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database schema is up to date (%d members, %d meetings).\n", stats.Members, stats.Meetings)
			return nil
		},
	}
}
