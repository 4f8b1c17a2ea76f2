package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/discord"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/store"
)

const (
	statsRecent      = 5
	defaultListLimit = 10
	maxListLimit     = 25
)

// MeetingReader is the read side of the store used by /meeting.
type MeetingReader interface {
	Stats(ctx context.Context) (store.Stats, error)
	RecentMeetings(ctx context.Context, limit int) ([]record.Meeting, error)
}

// MeetingCommands handles /meeting slash commands.
type MeetingCommands struct {
	meetings MeetingReader
	stats    *discord.ProcessStats
}

// NewMeetingCommands creates a MeetingCommands handler. stats may be nil, in
// which case /meeting stats omits processing figures.
func NewMeetingCommands(meetings MeetingReader, stats *discord.ProcessStats) *MeetingCommands {
	return &MeetingCommands{meetings: meetings, stats: stats}
}

// Register registers the /meeting command group with the router.
func (mc *MeetingCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("meeting", mc.Definition(), func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/meeting stats` or `/meeting list`.")
	})
	router.RegisterHandler("meeting/stats", mc.handleStats)
	router.RegisterHandler("meeting/list", mc.handleList)
}

// Definition returns the /meeting ApplicationCommand for Discord registration.
func (mc *MeetingCommands) Definition() *discordgo.ApplicationCommand {
	minLimit := 1.0
	return &discordgo.ApplicationCommand{
		Name:        "meeting",
		Description: "Inspect processed meetings",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stats",
				Description: "Record counts and the most recent meetings",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List recent meetings with their summaries",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "limit",
						Description: fmt.Sprintf("How many meetings to show (default %d)", defaultListLimit),
						MinValue:    &minLimit,
						MaxValue:    maxListLimit,
					},
				},
			},
		},
	}
}

func (mc *MeetingCommands) handleStats(s discord.Responder, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		stats  store.Stats
		recent []record.Meeting
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = mc.meetings.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = mc.meetings.RecentMeetings(gctx, statsRecent)
		return err
	})
	if err := g.Wait(); err != nil {
		discord.RespondError(s, i, fmt.Errorf("meeting stats: %w", err))
		return
	}
	embed := StatsEmbed(stats, recent)
	if mc.stats != nil {
		embed.Fields = append(embed.Fields, ProcessingField(mc.stats.Snapshot()))
	}
	discord.RespondEmbed(s, i, embed)
}

func (mc *MeetingCommands) handleList(s discord.Responder, i *discordgo.InteractionCreate) {
	limit := defaultListLimit
	if o, ok := optionMap(subcommandOptions(i))["limit"]; ok {
		limit = min(max(int(o.IntValue()), 1), maxListLimit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meetings, err := mc.meetings.RecentMeetings(ctx, limit)
	if err != nil {
		discord.RespondError(s, i, fmt.Errorf("list meetings: %w", err))
		return
	}
	if len(meetings) == 0 {
		discord.RespondEphemeral(s, i, "No meetings have been processed yet.")
		return
	}
	discord.RespondEmbed(s, i, MeetingsEmbed(meetings))
}
