package main

import (
	"context"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/scribe/internal/chat"
	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/extract"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/scribe/pkg/provider/llm/openai"
)

// registerBuiltinProviders wires every built-in oracle backend into reg.
// openai talks to the API directly with strict JSON-schema output; the rest
// go through any-llm.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, providerName := range anyllm.Providers {
		if providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	slog.Debug("registered oracle providers", "names", reg.Names())
}

// providerLabel names a provider entry in logs, metrics and breaker names.
func providerLabel(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// buildOracle creates the extraction oracle described by cfg.Oracle. With
// fallbacks configured the providers are chained behind per-provider circuit
// breakers; otherwise a single breaker guards the primary. The breakers are
// returned for readiness reporting.
func buildOracle(cfg config.OracleConfig, reg *config.Registry, metrics *observe.Metrics) (*extract.Oracle, []*resilience.CircuitBreaker, error) {
	primary, err := reg.CreateLLM(cfg.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("create oracle provider %q: %w", cfg.Provider.Name, err)
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("oracle circuit breaker changed state", "breaker", name, "from", from, "to", to)
			metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}

	var opts []extract.Option
	if cfg.Timeout > 0 {
		opts = append(opts, extract.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, extract.WithMaxRetries(*cfg.MaxRetries))
	}
	if cfg.Temperature != nil {
		opts = append(opts, extract.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, extract.WithMaxTokens(cfg.MaxTokens))
	}

	if len(cfg.Fallbacks) == 0 {
		breakerCfg.Name = providerLabel(cfg.Provider)
		cb := resilience.NewCircuitBreaker(breakerCfg)
		opts = append(opts, extract.WithBreaker(cb))
		slog.Info("oracle ready", "provider", providerLabel(cfg.Provider))
		return extract.New(primary, opts...), []*resilience.CircuitBreaker{cb}, nil
	}

	fb := resilience.NewLLMFallback(primary, providerLabel(cfg.Provider), resilience.FallbackConfig{CircuitBreaker: breakerCfg})
	for i, entry := range cfg.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("create oracle fallback %d %q: %w", i, entry.Name, err)
		}
		fb.AddFallback(providerLabel(entry), p)
	}
	slog.Info("oracle ready", "provider", providerLabel(cfg.Provider), "fallbacks", len(cfg.Fallbacks))
	return extract.New(fb, opts...), fb.Breakers(), nil
}

// buildAssistant creates the chat assistant described by cfg.Chat, answering
// from the records in r.
func buildAssistant(cfg *config.Config, reg *config.Registry, r chat.Reader, metrics *observe.Metrics) (*chat.Assistant, error) {
	entry := cfg.ChatProvider()
	p, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", entry.Name, err)
	}
	if !p.Capabilities().SupportsToolCalling {
		slog.Warn("chat model does not support tool calling; answers will not use the records", "provider", providerLabel(entry))
	}

	tools, err := chat.NewToolbox(metrics, chat.NewStoreTools(r, newMatcher(cfg.Matching), nil)...)
	if err != nil {
		return nil, err
	}
	c := cfg.Chat
	a, err := chat.New(p, tools,
		chat.WithHistory(c.HistoryMessages),
		chat.WithMaxRounds(c.MaxToolRounds),
		chat.WithMaxTokens(c.MaxTokens),
		chat.WithTimeout(c.Timeout),
		chat.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	slog.Info("chat assistant ready", "provider", providerLabel(entry))
	return a, nil
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
