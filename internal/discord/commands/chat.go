package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/scribe/internal/chat"
)

// chatErrorReply is sent when the assistant fails.
const chatErrorReply = "Sorry, I ran into an error processing your request."

// typingInterval refreshes the typing indicator, which Discord shows for
// about ten seconds.
const typingInterval = 8 * time.Second

// Replier answers one chat message.
type Replier interface {
	Reply(ctx context.Context, key chat.Key, text string) (string, error)
}

// MessageSender is the part of *discordgo.Session the chat handler uses.
type MessageSender interface {
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ MessageSender = (*discordgo.Session)(nil)

// ChatHandler answers messages that mention the bot.
type ChatHandler struct {
	replier Replier
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(r Replier) *ChatHandler {
	return &ChatHandler{replier: r}
}

// Handle answers m, whose content without the mention is text. The reply
// quotes m and never pings anyone.
func (ch *ChatHandler) Handle(s MessageSender, m *discordgo.MessageCreate, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), chat.DefaultTimeout+10*time.Second)
	defer cancel()

	stop := keepTyping(ctx, s, m.ChannelID)
	reply, err := ch.replier.Reply(ctx, chat.Key{ChannelID: m.ChannelID, UserID: m.Author.ID}, text)
	stop()
	if err != nil {
		slog.Error("chat reply failed", "channel", m.ChannelID, "user", m.Author.ID, "err", err)
		reply = chatErrorReply
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         reply,
		Reference:       m.SoftReference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
	if err != nil {
		slog.Warn("chat: failed to send reply", "channel", m.ChannelID, "err", err)
	}
}

// keepTyping shows the typing indicator in channelID until the returned
// func is called.
func keepTyping(ctx context.Context, s MessageSender, channelID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(typingInterval)
		defer t.Stop()
		for {
			if err := s.ChannelTyping(channelID); err != nil {
				slog.Debug("chat: typing indicator failed", "channel", channelID, "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
