package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/chat"
	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/discord"
	"github.com/MrWong99/scribe/internal/discord/commands"
	"github.com/MrWong99/scribe/internal/health"
	"github.com/MrWong99/scribe/internal/observe"
)

// shutdownTimeout bounds the HTTP server and telemetry shutdown.
const shutdownTimeout = 15 * time.Second

func newBotCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Discord bot",
		Long: `Run the Discord bot. When server.listen_addr is set, an HTTP server
exposes /metrics (Prometheus), /healthz and /readyz.

With chat.enabled set, the bot also answers messages that mention it,
using read-only tools over the meeting records.

A config file given with --config is watched; log level and matching
cutoffs are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runBot(cmd.Context())
		},
	}
}

func (c *cli) runBot(ctx context.Context) error {
	cfg := c.cfg
	if cfg.Discord.Token == "" {
		return fmt.Errorf("no Discord token configured: set discord.token or %s", config.EnvDiscordToken)
	}

	logger, closeLog := fileLogger(cfg.Server.LogFile, c.level)
	defer closeLog()
	slog.SetDefault(logger)

	tel, err := observe.Setup(ctx, observe.ProviderConfig{})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := tel.Metrics()

	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	integrator, breakers, err := c.newIntegrator(st, metrics)
	if err != nil {
		return err
	}

	var assistant *chat.Assistant
	if cfg.Chat.Enabled {
		reg := config.NewRegistry()
		registerBuiltinProviders(reg)
		if assistant, err = buildAssistant(cfg, reg, st, metrics); err != nil {
			return err
		}
	}

	bot, err := discord.New(ctx, discord.Config{
		Token:       cfg.Discord.Token,
		GuildID:     cfg.Discord.GuildID,
		AdminRoleID: cfg.Discord.AdminRoleID,
		Messages:    assistant != nil,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	stats := discord.NewProcessStats(100)
	commands.NewTranscriptCommands(bot.Permissions(), integrator, nil, stats).Register(bot.Router())
	commands.NewMeetingCommands(st, stats).Register(bot.Router())
	commands.NewMemberCommands(st).Register(bot.Router())
	if assistant != nil {
		h := commands.NewChatHandler(assistant)
		bot.OnMention(func(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
			h.Handle(s, m, text)
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})

	if c.configPath != "" {
		w, err := config.NewWatcher(c.configPath, config.HotReload(c.level, integrator))
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	if addr := cfg.Server.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", tel.MetricsHandler())
		health.New(
			health.Ping("database", st),
			health.Ping("discord", bot),
			health.Breakers("oracle", breakers...),
		).Register(mux)

		srv := &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	slog.Info("scribe bot ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("goodbye")
	return nil
}
