package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

func newMembersCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the committee roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newMembersListCommand(c), newMembersAddCommand(c), newMembersImportCommand(c))
	return cmd
}

func newMembersListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List committee members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			members, err := st.Members(ctx)
			if err != nil {
				return err
			}
			printMembers(cmd.OutOrStdout(), members)
			return nil
		},
	}
}

func newMembersAddCommand(c *cli) *cobra.Command {
	var m record.Member
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a committee member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := record.ValidateMember(m); err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			added, err := st.AddMember(ctx, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s).\n", added.Name, added.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&m.Name, "name", "", "full name as it appears in transcripts (required)")
	cmd.Flags().StringVar(&m.DiscordID, "discord-id", "", "Discord user ID")
	cmd.Flags().StringVar(&m.Role, "role", "", "committee role, e.g. Treasurer")
	cmd.Flags().StringVar(&m.Subcommittee, "subcommittee", "", "subcommittee the member belongs to")
	cmd.Flags().StringVar(&m.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newMembersImportCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import ROSTER.yaml",
		Short: "Add every member of a YAML roster file",
		Long: `Add every member listed in a roster file. Members whose name already
exists are skipped.

  committee: "Student Society 2025"
  members:
    - name: "Alice Smyth"
      role: "President"
      discord_id: "123456789012345678"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := record.LoadRosterFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			added, skipped, err := importRoster(ctx, st, roster)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d members, skipped %d existing.\n", added, skipped)
			return nil
		},
	}
}

// importRoster adds roster members to st, skipping names that exist.
func importRoster(ctx context.Context, st store.Store, roster *record.Roster) (added, skipped int, err error) {
	for _, m := range roster.Members {
		_, err := st.AddMember(ctx, m)
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			slog.Info("member already on the roster", "name", m.Name)
			skipped++
		case err != nil:
			return added, skipped, fmt.Errorf("add member %q: %w", m.Name, err)
		default:
			added++
		}
	}
	return added, skipped, nil
}
