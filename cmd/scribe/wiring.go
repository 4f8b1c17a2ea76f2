package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/match"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/internal/store"
	"github.com/MrWong99/scribe/internal/store/postgres"
)

// errNoDatabase is returned by commands that need the record store when no
// DSN is configured.
var errNoDatabase = errors.New("no database configured: set database.postgres_dsn or " + config.EnvDatabaseURL)

// openStore connects to PostgreSQL and migrates the schema.
func (c *cli) openStore(ctx context.Context) (*postgres.Store, error) {
	if c.cfg.Database.PostgresDSN == "" {
		return nil, errNoDatabase
	}
	return postgres.NewStore(ctx, c.cfg.Database.PostgresDSN)
}

// newMatcher builds the similarity matcher from the matching config.
func newMatcher(cfg config.MatchingConfig) *match.Matcher {
	opts := []match.Option{match.WithPhonetic(cfg.PhoneticEnabled())}
	if cfg.TokenThreshold > 0 {
		opts = append(opts, match.WithTokenThreshold(cfg.TokenThreshold))
	}
	return match.New(opts...)
}

// newIntegrator wires the oracle, matcher and cutoffs around st. The oracle's
// circuit breakers are returned for readiness reporting.
func (c *cli) newIntegrator(st store.Store, metrics *observe.Metrics) (*integrate.Integrator, []*resilience.CircuitBreaker, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	oracle, breakers, err := buildOracle(c.cfg.Oracle, reg, metrics)
	if err != nil {
		return nil, nil, err
	}
	in := integrate.New(st, oracle,
		integrate.WithCutoffs(c.cfg.Matching.Cutoffs),
		integrate.WithMatcher(newMatcher(c.cfg.Matching)),
		integrate.WithMetrics(metrics),
	)
	return in, breakers, nil
}

// dryRunStore returns an in-memory copy of the pools in src so that a
// transcript can be processed without writing anything. A meeting already
// ingested from the same content is copied too, so duplicates are still
// refused. A nil src yields an empty store.
func dryRunStore(ctx context.Context, src store.Store, contentHash string) (*store.MemStore, error) {
	mem := store.NewMemStore()
	if src == nil {
		return mem, nil
	}

	members, err := src.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: load members: %w", err)
	}
	for _, m := range members {
		if _, err := mem.AddMember(ctx, m); err != nil {
			return nil, fmt.Errorf("dry run: copy member %q: %w", m.Name, err)
		}
	}
	projects, err := src.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: load projects: %w", err)
	}
	for _, p := range projects {
		if _, err := mem.AddProject(p); err != nil {
			return nil, fmt.Errorf("dry run: copy project %q: %w", p.Name, err)
		}
	}
	topics, err := src.Topics(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: load topics: %w", err)
	}
	for _, t := range topics {
		if _, err := mem.AddTopic(t); err != nil {
			return nil, fmt.Errorf("dry run: copy topic %q: %w", t.Name, err)
		}
	}

	existing, err := src.MeetingByHash(ctx, contentHash)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("dry run: look up transcript: %w", err)
	default:
		if _, err := mem.Commit(ctx, &store.ChangeSet{Meeting: existing}); err != nil {
			return nil, fmt.Errorf("dry run: copy meeting %s: %w", existing.ID, err)
		}
	}
	return mem, nil
}
