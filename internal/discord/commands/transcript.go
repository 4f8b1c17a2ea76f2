package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/MrWong99/scribe/internal/discord"
	"github.com/MrWong99/scribe/internal/extract"
	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/record"
	"github.com/MrWong99/scribe/internal/transcript"
)

// processTimeout bounds one /transcript process call, download included.
const processTimeout = 5 * time.Minute

// Processor integrates one transcript. [*integrate.Integrator] satisfies it.
type Processor interface {
	Process(ctx context.Context, text string, meta record.MeetingMeta) (*integrate.Result, error)
}

var _ Processor = (*integrate.Integrator)(nil)

// TranscriptCommands handles /transcript slash commands.
type TranscriptCommands struct {
	perms *discord.PermissionChecker
	proc  Processor
	fetch Fetcher
	stats *discord.ProcessStats
	now   func() time.Time
}

// NewTranscriptCommands creates a TranscriptCommands handler. A nil fetch
// downloads attachments with http.DefaultClient; stats may be nil.
func NewTranscriptCommands(perms *discord.PermissionChecker, proc Processor, fetch Fetcher, stats *discord.ProcessStats) *TranscriptCommands {
	if fetch == nil {
		fetch = HTTPFetcher(nil)
	}
	return &TranscriptCommands{
		perms: perms,
		proc:  proc,
		fetch: fetch,
		stats: stats,
		now:   time.Now,
	}
}

// Register registers the /transcript command group with the router.
func (tc *TranscriptCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("transcript", tc.Definition(), func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/transcript process`.")
	})
	router.RegisterHandler("transcript/process", tc.handleProcess)
}

// Definition returns the /transcript ApplicationCommand for Discord registration.
func (tc *TranscriptCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "transcript",
		Description: "Turn meeting transcripts into records",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "process",
				Description: "Extract participants, projects, topics and tasks from a transcript",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionAttachment,
						Name:        "file",
						Description: "Transcript file (" + strings.Join(transcript.Extensions, ", ") + ")",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "meeting_type",
						Description: "Which body held the meeting",
						Required:    true,
						Choices:     meetingTypeChoices,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Meeting name (default: derived from the file name)",
						MaxLength:   255,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "date",
						Description: "Meeting date, DD-MM-YYYY or YYYY-MM-DD (default: today)",
					},
				},
			},
		},
	}
}

// handleProcess downloads the attachment, runs the integrator and replies
// with a summary embed.
func (tc *TranscriptCommands) handleProcess(s discord.Responder, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You need the admin role to process transcripts.")
		return
	}

	attachment := AttachmentOption(i, "file")
	if attachment == nil {
		discord.RespondEphemeral(s, i, "Please attach a transcript file.")
		return
	}
	if transcript.DetectFormat(attachment.Filename) == transcript.FormatUnknown {
		discord.RespondEphemeral(s, i, fmt.Sprintf("Unsupported file type. Use one of: %s.", strings.Join(transcript.Extensions, ", ")))
		return
	}
	if attachment.Size > transcript.MaxSize {
		discord.RespondEphemeral(s, i, fmt.Sprintf("File too large (%d bytes). Maximum is %d MB.", attachment.Size, transcript.MaxSize>>20))
		return
	}

	meta, err := tc.meta(optionMap(subcommandOptions(i)), attachment.Filename)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}

	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	data, err := tc.fetch(ctx, attachment)
	if err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Failed to download attachment: %v", err))
		return
	}
	text, err := transcript.Load(attachment.Filename, data)
	if err != nil {
		discord.FollowUp(s, i, fmt.Sprintf("Could not read `%s`: %v", attachment.Filename, err))
		return
	}

	slog.Info("discord: processing transcript",
		"file", attachment.Filename,
		"meeting", meta.Name,
		"type", meta.Type,
		"user", discord.UserID(i),
	)
	start := time.Now()
	res, err := tc.proc.Process(ctx, text, meta)
	switch {
	case errors.Is(err, integrate.ErrDuplicateTranscript):
		tc.stats.RecordDuplicate()
	case err != nil:
		tc.stats.RecordFailure()
	default:
		tc.stats.RecordSuccess(time.Since(start))
	}
	if err != nil {
		discord.FollowUp(s, i, failureMessage(err))
		return
	}
	discord.FollowUpEmbed(s, i, ResultEmbed(meta, res))
}

// meta builds the meeting metadata from the subcommand options.
func (tc *TranscriptCommands) meta(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, filename string) (record.MeetingMeta, error) {
	var meta record.MeetingMeta

	typ, ok := opts["meeting_type"]
	if !ok {
		return meta, errors.New("meeting_type is required")
	}
	mt, err := record.ParseMeetingType(typ.StringValue())
	if err != nil {
		return meta, err
	}
	meta.Type = mt

	if o, ok := opts["name"]; ok {
		meta.Name = strings.TrimSpace(o.StringValue())
	}
	if meta.Name == "" {
		meta.Name = transcript.MeetingName(filename)
	}
	if meta.Name == "" {
		return meta, errors.New("could not derive a meeting name from the file name; pass `name`")
	}

	meta.Date = tc.now().UTC()
	if o, ok := opts["date"]; ok && strings.TrimSpace(o.StringValue()) != "" {
		d, err := record.ParseMeetingDate(o.StringValue())
		if err != nil {
			return meta, err
		}
		meta.Date = d
	}
	return meta, nil
}

// failureMessage turns a Process error into a user-facing reply.
func failureMessage(err error) string {
	var dup *integrate.DuplicateError
	var oerr *extract.OracleError
	switch {
	case errors.As(err, &dup):
		if dup.MeetingID != uuid.Nil {
			return fmt.Sprintf("This transcript was already processed (meeting `%s`). Nothing was changed.", dup.MeetingID)
		}
		return "This transcript was already processed. Nothing was changed."
	case errors.As(err, &oerr):
		if oerr.Retryable {
			return "The extraction service is unavailable right now. Nothing was saved; please try again later."
		}
		return fmt.Sprintf("The extraction service returned an unusable answer. Nothing was saved. (%v)", err)
	case errors.Is(err, integrate.ErrInvalidMeta):
		return fmt.Sprintf("Invalid input: %v", err)
	case errors.Is(err, integrate.ErrPersistence):
		slog.Error("discord: transcript persistence failed", "err", err)
		return "Saving the meeting failed. Nothing was saved; please try again."
	}
	slog.Error("discord: transcript processing failed", "err", err)
	return fmt.Sprintf("Processing failed: %v", err)
}
