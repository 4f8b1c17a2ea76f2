package discord

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// maxContentLen is Discord's limit for message content.
const maxContentLen = 2000

// Responder is the part of *discordgo.Session that answers interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Responder = (*discordgo.Session)(nil)

// Every reply scribe sends is ephemeral: results and errors are only shown
// to the admin who ran the command.

// RespondEphemeral answers i with text.
func RespondEphemeral(s Responder, i *discordgo.InteractionCreate, content string) {
	respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, clip(content), nil)
}

// RespondEmbed answers i with embed.
func RespondEmbed(s Responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, "", embed)
}

// RespondError answers i with "Error: " and err.
func RespondError(s Responder, i *discordgo.InteractionCreate, err error) {
	RespondEphemeral(s, i, fmt.Sprintf("Error: %v", err))
}

// DeferReply acknowledges i so the handler may take longer than Discord's
// three-second window. The answer follows with [FollowUp] or
// [FollowUpEmbed].
func DeferReply(s Responder, i *discordgo.InteractionCreate) {
	respond(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource, "", nil)
}

// FollowUp sends text after [DeferReply].
func FollowUp(s Responder, i *discordgo.InteractionCreate, content string) {
	followUp(s, i, clip(content), nil)
}

// FollowUpEmbed sends embed after [DeferReply].
func FollowUpEmbed(s Responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	followUp(s, i, "", embed)
}

func respond(s Responder, i *discordgo.InteractionCreate, typ discordgo.InteractionResponseType, content string, embed *discordgo.MessageEmbed) {
	data := &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral}
	if embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: typ, Data: data}); err != nil {
		slog.Warn("discord: interaction response failed", "type", typ, "user", UserID(i), "err", err)
	}
}

func followUp(s Responder, i *discordgo.InteractionCreate, content string, embed *discordgo.MessageEmbed) {
	params := &discordgo.WebhookParams{Content: content, Flags: discordgo.MessageFlagsEphemeral}
	if embed != nil {
		params.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		slog.Warn("discord: follow-up failed", "user", UserID(i), "err", err)
	}
}

// clip cuts content to [maxContentLen] runes.
func clip(content string) string {
	if utf8.RuneCountInString(content) <= maxContentLen {
		return content
	}
	r := []rune(content)
	return string(r[:maxContentLen-1]) + "…"
}
