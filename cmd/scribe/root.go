package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/config"
)

// defaultConfigPath is read when present and --config is not given.
const defaultConfigPath = "config.yaml"

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
	level      *slog.LevelVar
}

func newRootCommand() *cobra.Command {
	c := &cli{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Turn meeting transcripts into structured committee records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")

	root.AddCommand(
		newProcessCommand(c),
		newSetupCommand(c),
		newStatsCommand(c),
		newMembersCommand(c),
		newBotCommand(c),
	)
	return root
}

// loadConfig reads the configuration and installs the default logger. A
// missing default config file is not an error: everything can come from the
// environment.
func (c *cli) loadConfig(cmd *cobra.Command) error {
	path := c.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.configPath = path

	c.level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(os.Stderr, c.level))
	slog.Debug("config loaded", "path", path, "provider", cfg.Oracle.Provider.Name, "model", cfg.Oracle.Provider.Model)
	return nil
}
