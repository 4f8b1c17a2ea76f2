// Package mock provides recording Discord session doubles for command tests.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records what a handler sent. Err, when set, is
// returned from every call after it has been recorded.
type InteractionResponder struct {
	mu sync.Mutex

	Responses []*discordgo.InteractionResponse
	FollowUps []*discordgo.WebhookParams

	Err error
}

// InteractionRespond implements discord.Responder.
func (m *InteractionResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate implements discord.Responder.
func (m *InteractionResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// LastResponse returns the latest recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return last(m.Responses)
}

// LastFollowUp returns the latest recorded follow-up, or nil.
func (m *InteractionResponder) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return last(m.FollowUps)
}

// Deferred reports whether the first response acknowledged the interaction
// for a later follow-up.
func (m *InteractionResponder) Deferred() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Responses) > 0 && m.Responses[0].Type == discordgo.InteractionResponseDeferredChannelMessageWithSource
}

func last[T any](s []*T) *T {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// MessageSender records typing indicators and sent channel messages. Err,
// when set, is returned from every send after it has been recorded.
type MessageSender struct {
	mu sync.Mutex

	Typing []string
	Sent   []*discordgo.MessageSend

	Err error
}

// ChannelTyping implements commands.MessageSender.
func (m *MessageSender) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Typing = append(m.Typing, channelID)
	return nil
}

// ChannelMessageSendComplex implements commands.MessageSender.
func (m *MessageSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message", ChannelID: channelID, Content: data.Content}, nil
}

// LastSent returns the latest sent message, or nil.
func (m *MessageSender) LastSent() *discordgo.MessageSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return last(m.Sent)
}
