package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

// statsRecent is how many recent meetings stats lists.
const statsRecent = 5

func newStatsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and the most recent meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			var (
				stats  store.Stats
				recent []record.Meeting
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				stats, err = st.Stats(gctx)
				return err
			})
			g.Go(func() error {
				var err error
				recent, err = st.RecentMeetings(gctx, statsRecent)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats, recent)
			return nil
		},
	}
}
