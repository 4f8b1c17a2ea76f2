package discord

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc is the signature for slash command handlers.
type HandlerFunc func(s Responder, i *discordgo.InteractionCreate)

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command *discordgo.ApplicationCommand
	handler HandlerFunc
}

// CommandRouter dispatches Discord interactions to registered handlers.
type CommandRouter struct {
	mu       sync.RWMutex
	commands map[string]commandEntry // "command" or "command/subcommand" → entry
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		commands: make(map[string]commandEntry),
	}
}

// RegisterCommand registers a handler for a slash command. The key format is
// "command" or "command/subcommand" (e.g., "meeting/stats"). The cmd
// definition is used when registering commands with Discord (only top-level
// commands are registered; subcommands are nested inside).
func (r *CommandRouter) RegisterCommand(key string, cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[key] = commandEntry{command: cmd, handler: handler}
}

// RegisterHandler registers a handler for a slash command key without
// providing a command definition. Use this for subcommand handlers when
// the parent command is already registered.
func (r *CommandRouter) RegisterHandler(key string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[key] = commandEntry{handler: handler}
}

// ApplicationCommands returns the deduplicated list of top-level command
// definitions, sorted by name, for registration with the Discord API.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var cmds []*discordgo.ApplicationCommand
	for _, entry := range r.commands {
		if entry.command != nil && !seen[entry.command.Name] {
			seen[entry.command.Name] = true
			cmds = append(cmds, entry.command)
		}
	}
	sort.Slice(cmds, func(a, b int) bool { return cmds[a].Name < cmds[b].Name })
	return cmds
}

// Handle dispatches an interaction to the appropriate handler. A panicking
// handler is logged and answered with an error message.
func (r *CommandRouter) Handle(s Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleApplicationCommand(s, i)

	default:
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
	}
}

// interactionKeys returns the router keys for an ApplicationCommand
// interaction, most specific first: "command/subcommand", then "command".
func interactionKeys(data discordgo.ApplicationCommandInteractionData) []string {
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return []string{data.Name + "/" + data.Options[0].Name, data.Name}
	}
	return []string{data.Name}
}

// lookup returns the entry for the first key with a handler.
func (r *CommandRouter) lookup(keys []string) (string, commandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range keys {
		if e, ok := r.commands[k]; ok && e.handler != nil {
			return k, e, true
		}
	}
	return "", commandEntry{}, false
}

func (r *CommandRouter) handleApplicationCommand(s Responder, i *discordgo.InteractionCreate) {
	keys := interactionKeys(i.ApplicationCommandData())
	key, entry, ok := r.lookup(keys)
	if !ok {
		slog.Warn("discord: unknown command", "key", keys[0], "user", UserID(i))
		RespondEphemeral(s, i, "Unknown command.")
		return
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("discord: command panicked", "key", key, "panic", p, "stack", string(debug.Stack()))
			RespondError(s, i, fmt.Errorf("internal error"))
			return
		}
		slog.Debug("discord: command handled", "key", key, "user", UserID(i), "duration", time.Since(start))
	}()
	entry.handler(s, i)
}

// UserID returns the invoking user's ID for guild and DM interactions.
func UserID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
