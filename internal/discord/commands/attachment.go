// Package commands implements scribe's Discord slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/scribe/internal/transcript"
)

// ErrAttachmentTooLarge is returned when a download exceeds the transcript
// size limit.
var ErrAttachmentTooLarge = errors.New("attachment too large")

// Fetcher downloads an attachment's content.
type Fetcher func(ctx context.Context, attachment *discordgo.MessageAttachment) ([]byte, error)

// AttachmentOption returns the attachment passed as the named option of the
// invoked subcommand, falling back to the first resolved attachment. Returns
// nil if the interaction carries no attachment.
func AttachmentOption(i *discordgo.InteractionCreate, name string) *discordgo.MessageAttachment {
	if i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	data := i.ApplicationCommandData()
	if data.Resolved == nil || len(data.Resolved.Attachments) == 0 {
		return nil
	}
	if opt := optionMap(subcommandOptions(i))[name]; opt != nil {
		if id, ok := opt.Value.(string); ok {
			if a := data.Resolved.Attachments[id]; a != nil {
				return a
			}
		}
	}
	for _, a := range data.Resolved.Attachments {
		return a
	}
	return nil
}

// HTTPFetcher returns a [Fetcher] that downloads with client and refuses
// bodies larger than [transcript.MaxSize]. A nil client uses
// http.DefaultClient.
func HTTPFetcher(client *http.Client) Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, attachment *discordgo.MessageAttachment) ([]byte, error) {
		if attachment == nil {
			return nil, errors.New("attachment is nil")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("create download request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download attachment: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download attachment: unexpected status %s", resp.Status)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, transcript.MaxSize+1))
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		if len(data) > transcript.MaxSize {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrAttachmentTooLarge, transcript.MaxSize)
		}
		return data, nil
	}
}

// subcommandOptions extracts the options from the first subcommand in an
// interaction's application command data. Returns nil if no subcommand exists.
func subcommandOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Options
	}
	return nil
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}
