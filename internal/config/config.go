// Package config provides the configuration schema, loader, and oracle
// provider registry for scribe.
package config

import (
	"time"

	"github.com/MrWong99/scribe/internal/resolve"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DefaultModel is the oracle model used when none is configured.
const DefaultModel = "gpt-4.1-mini"

// Config is the root configuration structure for scribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Database DatabaseConfig `yaml:"database"`
	Matching MatchingConfig `yaml:"matching"`
	Discord  DiscordConfig  `yaml:"discord"`
	Chat     ChatConfig     `yaml:"chat"`
}

// ServerConfig holds logging and the bot's HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is where the bot serves /metrics, /healthz and /readyz.
	// Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, receives a rotated copy of the bot's log output.
	LogFile LogFileConfig `yaml:"log_file"`
}

// LogFileConfig configures log rotation for the bot.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ProviderEntry is the configuration block for one completion provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// OracleConfig configures the extraction oracle.
type OracleConfig struct {
	Provider ProviderEntry `yaml:"provider"`

	// Fallbacks are tried in order when the primary provider fails or its
	// circuit breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Timeout bounds one extraction including retries. Zero keeps the
	// oracle default.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after a transient failure.
	// Nil keeps the oracle default.
	MaxRetries *int `yaml:"max_retries"`

	// Temperature is the sampling temperature. Nil keeps the oracle default.
	Temperature *float64 `yaml:"temperature"`

	MaxTokens int `yaml:"max_tokens"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker placed in front of each provider.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	// PostgresDSN is a libpq connection string or URL.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MatchingConfig tunes entity resolution. Zero cutoffs fall back to
// [resolve.DefaultCutoffs].
type MatchingConfig struct {
	Cutoffs resolve.Cutoffs `yaml:"cutoffs"`

	// Phonetic toggles Double Metaphone word alignment. Nil means enabled.
	Phonetic *bool `yaml:"phonetic"`

	// TokenThreshold is the minimum ratio for two words to align. Zero keeps
	// the matcher default.
	TokenThreshold float64 `yaml:"token_threshold"`
}

// PhoneticEnabled reports whether phonetic alignment is on.
func (m MatchingConfig) PhoneticEnabled() bool {
	return m.Phonetic == nil || *m.Phonetic
}

// DiscordConfig holds the bot credentials and scope.
type DiscordConfig struct {
	Token string `yaml:"token"`

	// GuildID registers commands to one guild. Empty registers them globally.
	GuildID string `yaml:"guild_id"`

	// AdminRoleID is required to run /transcript process. Empty allows
	// everyone, which is only meant for development.
	AdminRoleID string `yaml:"admin_role_id"`
}

// ChatConfig configures the assistant that answers messages mentioning the
// bot. Zero values keep the assistant defaults.
type ChatConfig struct {
	Enabled bool `yaml:"enabled"`

	// Provider answers chat messages. An empty name reuses oracle.provider.
	// The model must support tool calling to query the records.
	Provider ProviderEntry `yaml:"provider"`

	// HistoryMessages is the number of messages remembered per channel and
	// user.
	HistoryMessages int `yaml:"history_messages"`

	// MaxToolRounds bounds the model calls of one reply.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	MaxTokens int `yaml:"max_tokens"`

	Timeout time.Duration `yaml:"timeout"`
}

// ChatProvider returns the provider entry the assistant uses.
func (c *Config) ChatProvider() ProviderEntry {
	if c.Chat.Provider.Name == "" {
		return c.Oracle.Provider
	}
	return c.Chat.Provider
}
