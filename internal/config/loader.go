package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the oracle provider names registered by the
// scribe binary. Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Environment variables that override file values after [Load] reads .env.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvOpenAIModel  = "OPENAI_MODEL"
	EnvDiscordToken = "DISCORD_TOKEN"
)

// Load reads the YAML configuration file at path, applies environment
// overrides and returns a validated [Config].
//
// A .env file in the working directory is loaded first when present.
// Variables already set in the process environment win over .env entries.
// An empty path skips the file and builds the config from the environment
// alone.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: could not read .env", "err", err)
	}

	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if cfg, err = decode(f); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	ApplyEnv(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with values from lookup. Only non-empty variables
// take effect. The OpenAI variables apply when the primary oracle provider
// is openai or not yet chosen.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(EnvDatabaseURL); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := get(EnvDiscordToken); v != "" {
		cfg.Discord.Token = v
	}

	p := &cfg.Oracle.Provider
	if p.Name != "" && p.Name != "openai" {
		return
	}
	if v := get(EnvOpenAIKey); v != "" {
		p.APIKey = v
		p.Name = "openai"
	}
	if v := get(EnvOpenAIModel); v != "" {
		p.Model = v
		p.Name = "openai"
	}
}

// ApplyDefaults fills unset values that have a single sensible default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Oracle.Provider.Name == "" {
		cfg.Oracle.Provider.Name = "openai"
	}
	if cfg.Oracle.Provider.Name == "openai" && cfg.Oracle.Provider.Model == "" {
		cfg.Oracle.Provider.Model = DefaultModel
	}
	cfg.Matching.Cutoffs = cfg.Matching.Cutoffs.WithDefaults()
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Required-but-missing values (DSN, bot token) are checked by the commands
// that need them, not here.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	lf := cfg.Server.LogFile
	if lf.MaxSizeMB < 0 || lf.MaxBackups < 0 || lf.MaxAgeDays < 0 {
		errs = append(errs, errors.New("server.log_file sizes and counts must not be negative"))
	}

	errs = append(errs, validateProvider("oracle.provider", cfg.Oracle.Provider)...)
	seen := map[string]int{cfg.Oracle.Provider.Name + "/" + cfg.Oracle.Provider.Model: -1}
	for i, fb := range cfg.Oracle.Fallbacks {
		prefix := fmt.Sprintf("oracle.fallbacks[%d]", i)
		errs = append(errs, validateProvider(prefix, fb)...)
		key := fb.Name + "/" + fb.Model
		if prev, ok := seen[key]; ok {
			if prev < 0 {
				errs = append(errs, fmt.Errorf("%s duplicates oracle.provider", prefix))
			} else {
				errs = append(errs, fmt.Errorf("%s duplicates oracle.fallbacks[%d]", prefix, prev))
			}
		}
		seen[key] = i
	}

	if cfg.Oracle.Timeout < 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout %s must not be negative", cfg.Oracle.Timeout))
	}
	if r := cfg.Oracle.MaxRetries; r != nil && *r < 0 {
		errs = append(errs, fmt.Errorf("oracle.max_retries %d must not be negative", *r))
	}
	if t := cfg.Oracle.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("oracle.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Oracle.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("oracle.max_tokens %d must not be negative", cfg.Oracle.MaxTokens))
	}
	if cfg.Oracle.Breaker.MaxFailures < 0 || cfg.Oracle.Breaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("oracle.breaker values must not be negative"))
	}

	if dsn := cfg.Database.PostgresDSN; strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err != nil {
			errs = append(errs, fmt.Errorf("database.postgres_dsn is not a valid URL: %w", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errs = append(errs, fmt.Errorf("database.postgres_dsn scheme %q is not postgres", u.Scheme))
		}
	}

	if err := cfg.Matching.Cutoffs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching.cutoffs: %w", err))
	}
	if th := cfg.Matching.TokenThreshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("matching.token_threshold %v must be in [0, 1]", th))
	}

	if cfg.Chat.Provider.Name != "" {
		errs = append(errs, validateProvider("chat.provider", cfg.Chat.Provider)...)
	}
	ch := cfg.Chat
	if ch.HistoryMessages < 0 || ch.MaxToolRounds < 0 || ch.MaxTokens < 0 || ch.Timeout < 0 {
		errs = append(errs, errors.New("chat limits must not be negative"))
	}

	return errors.Join(errs...)
}

func validateProvider(prefix string, p ProviderEntry) []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		return errs
	}
	if p.Model == "" && p.Name != "openai" {
		errs = append(errs, fmt.Errorf("%s.model is required for provider %q", prefix, p.Name))
	}
	if p.BaseURL != "" {
		if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s.base_url %q is not an absolute URL", prefix, p.BaseURL))
		}
	}
	if !slices.Contains(ValidProviderNames, p.Name) {
		slog.Warn("unknown provider name, may be a typo or a third-party provider",
			"field", prefix,
			"name", p.Name,
			"known", ValidProviderNames,
		)
	}
	return errs
}
