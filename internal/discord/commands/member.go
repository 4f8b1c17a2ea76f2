package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/scribe/internal/discord"
	"github.com/MrWong99/scribe/internal/record"
)

// RosterReader lists committee members.
type RosterReader interface {
	Members(ctx context.Context) ([]record.Member, error)
}

// MemberCommands handles /member slash commands.
type MemberCommands struct {
	roster RosterReader
}

// NewMemberCommands creates a MemberCommands handler.
func NewMemberCommands(roster RosterReader) *MemberCommands {
	return &MemberCommands{roster: roster}
}

// Register registers the /member command group with the router.
func (mc *MemberCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("member", mc.Definition(), func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/member list`.")
	})
	router.RegisterHandler("member/list", mc.handleList)
}

// Definition returns the /member ApplicationCommand for Discord registration.
func (mc *MemberCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "member",
		Description: "Committee roster",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List committee members",
			},
		},
	}
}

func (mc *MemberCommands) handleList(s discord.Responder, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	members, err := mc.roster.Members(ctx)
	if err != nil {
		discord.RespondError(s, i, fmt.Errorf("list members: %w", err))
		return
	}
	if len(members) == 0 {
		discord.RespondEphemeral(s, i, "The roster is empty. Add members with `scribe members add` or `scribe members import`.")
		return
	}
	discord.RespondEmbed(s, i, MembersEmbed(members))
}
