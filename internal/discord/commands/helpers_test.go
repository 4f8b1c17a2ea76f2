package commands

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/record"
)

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value,
	}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value),
	}
}

func attachmentOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionAttachment, Value: id,
	}
}

// subcommand builds a slash command interaction for "/command sub" with the
// given options and resolved attachments. The invoking member holds roles.
func subcommand(command, sub string, opts []*discordgo.ApplicationCommandInteractionDataOption, attachments map[string]*discordgo.MessageAttachment, roles ...string) *discordgo.InteractionCreate {
	data := discordgo.ApplicationCommandInteractionData{
		Name: command,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
		},
	}
	if attachments != nil {
		data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{Attachments: attachments}
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: data,
			Member: &discordgo.Member{
				User:  &discordgo.User{ID: "user-1"},
				Roles: roles,
			},
		},
	}
}

type processCall struct {
	Text string
	Meta record.MeetingMeta
}

// fakeProcessor records Process calls and returns a canned result.
type fakeProcessor struct {
	mu    sync.Mutex
	calls []processCall
	res   *integrate.Result
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, text string, meta record.MeetingMeta) (*integrate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, processCall{Text: text, Meta: meta})
	return f.res, f.err
}

func (f *fakeProcessor) Calls() []processCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]processCall(nil), f.calls...)
}

// staticFetcher returns a Fetcher that always yields data and err.
func staticFetcher(data string, err error) Fetcher {
	return func(context.Context, *discordgo.MessageAttachment) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return []byte(data), nil
	}
}
