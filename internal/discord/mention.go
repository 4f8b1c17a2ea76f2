package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// MentionHandler handles a message that mentions the bot. text is the
// message content with the bot mention removed.
type MentionHandler func(s *discordgo.Session, m *discordgo.MessageCreate, text string)

// OnMention calls h for every message from a human that mentions the bot.
// The bot must have been created with [Config.Messages] set, otherwise
// Discord does not deliver message content.
func (b *Bot) OnMention(h MentionHandler) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if s.State == nil || s.State.User == nil {
			return
		}
		if text, ok := MentionText(s.State.User.ID, m.Message); ok {
			h(s, m, text)
		}
	})
}

// MentionText reports whether msg from a human mentions the user selfID and
// returns its content without the mention tokens.
func MentionText(selfID string, msg *discordgo.Message) (string, bool) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || selfID == "" {
		return "", false
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", false
	}

	tokens := []string{"<@" + selfID + ">", "<@!" + selfID + ">"}
	mentioned := false
	for _, u := range msg.Mentions {
		if u != nil && u.ID == selfID {
			mentioned = true
			break
		}
	}
	for _, tok := range tokens {
		if strings.Contains(content, tok) {
			mentioned = true
			content = strings.ReplaceAll(content, tok, "")
		}
	}
	if !mentioned {
		return "", false
	}
	return strings.TrimSpace(content), true
}
