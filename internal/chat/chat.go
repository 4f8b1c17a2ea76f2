// Package chat answers free-form questions about the committee records.
//
// An [Assistant] keeps a short per-(channel, user) conversation history and
// runs a bounded tool loop: the model may call the read-only tools from
// [NewStoreTools] several times before it writes the final reply. Only the
// user's text and the final reply are remembered; tool traffic is dropped
// once the turn is over.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

const (
	// DefaultHistory is the number of remembered messages per conversation
	// (six exchanges).
	DefaultHistory = 12

	// DefaultMaxRounds bounds the model calls of one turn.
	DefaultMaxRounds = 5

	// DefaultMaxTokens caps each completion.
	DefaultMaxTokens = 1000

	// DefaultTimeout bounds one turn including tool calls.
	DefaultTimeout = 90 * time.Second

	// MaxReplyRunes keeps replies inside a Discord message.
	MaxReplyRunes = 1900
)

// Fixed replies.
const (
	greeting        = "Hello!"
	emptyReply      = "I processed your request."
	exhaustedReply  = "I ran into some complexity processing that request. Please try rephrasing."
	truncatedSuffix = "..."
)

// Reply outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeExhausted = "rounds_exhausted"
	outcomeError     = "error"
)

// ErrNoProvider is returned by [New] without a provider.
var ErrNoProvider = errors.New("chat: provider is required")

// Key identifies one conversation.
type Key struct {
	ChannelID string
	UserID    string
}

type callerKey struct{}

// WithCaller returns ctx carrying the Discord user ID of the person asking.
// The "mine" and "whoami" tools resolve it against the roster.
func WithCaller(ctx context.Context, discordID string) context.Context {
	return context.WithValue(ctx, callerKey{}, discordID)
}

// CallerFrom returns the Discord user ID set by [WithCaller], or "".
func CallerFrom(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// Option configures an [Assistant].
type Option func(*Assistant)

// WithHistory sets how many messages are remembered per conversation.
func WithHistory(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.history = n
		}
	}
}

// WithMaxRounds sets the maximum model calls per turn.
func WithMaxRounds(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithMaxTokens caps each completion.
func WithMaxTokens(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTimeout bounds one turn.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithSystemPrompt replaces [SystemPrompt].
func WithSystemPrompt(p string) Option {
	return func(a *Assistant) {
		if strings.TrimSpace(p) != "" {
			a.systemPrompt = p
		}
	}
}

// WithMetrics records reply outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// Assistant answers chat messages. It is safe for concurrent use; turns of
// the same conversation are serialised.
type Assistant struct {
	provider     llm.Provider
	tools        *Toolbox
	systemPrompt string
	history      int
	maxRounds    int
	maxTokens    int
	timeout      time.Duration
	metrics      *observe.Metrics

	mu    sync.Mutex
	convs map[Key]*conversation
}

type conversation struct {
	mu       sync.Mutex
	messages []llm.Message
}

// New returns an Assistant answering through p. tools may be nil, in which
// case the model answers without tools.
func New(p llm.Provider, tools *Toolbox, opts ...Option) (*Assistant, error) {
	if p == nil {
		return nil, ErrNoProvider
	}
	a := &Assistant{
		provider:     p,
		tools:        tools,
		systemPrompt: SystemPrompt,
		history:      DefaultHistory,
		maxRounds:    DefaultMaxRounds,
		maxTokens:    DefaultMaxTokens,
		timeout:      DefaultTimeout,
		convs:        make(map[Key]*conversation),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Reply answers text in the conversation identified by key. Blank text is
// treated as a greeting. A turn that runs out of rounds still yields a reply
// asking the user to rephrase. On error nothing is remembered.
func (a *Assistant) Reply(ctx context.Context, key Key, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "chat.reply")
	reply, outcome, err := a.reply(ctx, key, text)
	observe.EndSpan(span, err)
	if a.metrics != nil {
		a.metrics.RecordChatReply(ctx, outcome)
	}
	return reply, err
}

func (a *Assistant) reply(ctx context.Context, key Key, text string) (string, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = greeting
	}
	ctx, cancel := context.WithTimeout(WithCaller(ctx, key.UserID), a.timeout)
	defer cancel()
	log := observe.Logger(ctx)

	conv := a.conversation(key)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	msgs := make([]llm.Message, 0, len(conv.messages)+2)
	msgs = append(msgs, conv.messages...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})

	var defs []llm.ToolDefinition
	if a.tools != nil && a.provider.Capabilities().SupportsToolCalling {
		defs = a.tools.Definitions()
	}

	for round := range a.maxRounds {
		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: a.systemPrompt,
			Messages:     msgs,
			Tools:        defs,
			MaxTokens:    a.maxTokens,
		})
		if err != nil {
			return "", outcomeError, fmt.Errorf("chat: completion: %w", err)
		}
		if resp == nil {
			return "", outcomeError, fmt.Errorf("chat: completion: %w", llm.ErrEmptyResponse)
		}
		if len(resp.ToolCalls) == 0 {
			reply := clip(strings.TrimSpace(resp.Content))
			if reply == "" {
				reply = emptyReply
			}
			a.remember(conv, text, reply)
			log.Debug("chat reply", "channel", key.ChannelID, "user", key.UserID, "rounds", round+1)
			return reply, outcomeOK, nil
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			log.Debug("chat tool call", "tool", tc.Name, "args", tc.Arguments)
			res := a.tools.Execute(ctx, tc.Name, tc.Arguments)
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: res.Content, ToolCallID: tc.ID})
		}
	}

	log.Warn("chat turn ran out of tool rounds", "channel", key.ChannelID, "user", key.UserID, "rounds", a.maxRounds)
	a.remember(conv, text, exhaustedReply)
	return exhaustedReply, outcomeExhausted, nil
}

// Forget drops the history of key.
func (a *Assistant) Forget(key Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.convs, key)
}

// History returns a copy of the remembered messages of key.
func (a *Assistant) History(key Key) []llm.Message {
	conv := a.conversation(key)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]llm.Message(nil), conv.messages...)
}

func (a *Assistant) conversation(key Key) *conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.convs[key]
	if !ok {
		c = &conversation{}
		a.convs[key] = c
	}
	return c
}

// remember appends one exchange and keeps the newest a.history messages.
// conv.mu must be held.
func (a *Assistant) remember(conv *conversation, text, reply string) {
	conv.messages = append(conv.messages,
		llm.Message{Role: llm.RoleUser, Content: text},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	if over := len(conv.messages) - a.history; over > 0 {
		conv.messages = append([]llm.Message(nil), conv.messages[over:]...)
	}
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= MaxReplyRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimRightFunc(string(r[:MaxReplyRunes]), func(c rune) bool { return c == ' ' || c == '\n' }) + truncatedSuffix
}
