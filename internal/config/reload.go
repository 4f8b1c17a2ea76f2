package config

import (
	"log/slog"

	"github.com/MrWong99/scribe/internal/resolve"
)

// Level converts l to its slog level. Unknown values map to Info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// CutoffSetter accepts new matching cutoffs at runtime.
type CutoffSetter interface {
	SetCutoffs(resolve.Cutoffs) error
}

// HotReload returns a [Watcher] callback that applies the reloadable parts
// of a config change: the log level goes into level and new cutoffs into
// cutoffs. Either target may be nil. Sections that need a restart are
// logged.
func HotReload(level *slog.LevelVar, cutoffs CutoffSetter) func(old, new *Config) {
	return func(old, new *Config) {
		d := Diff(old, new)
		if d.LogLevelChanged && level != nil {
			level.Set(d.NewLogLevel.Level())
			slog.Info("config: log level changed", "level", d.NewLogLevel)
		}
		if d.CutoffsChanged && cutoffs != nil {
			if err := cutoffs.SetCutoffs(d.NewCutoffs); err != nil {
				slog.Warn("config: cutoffs rejected", "err", err)
			} else {
				slog.Info("config: cutoffs changed",
					"members", d.NewCutoffs.Members,
					"projects", d.NewCutoffs.Projects,
					"topics", d.NewCutoffs.Topics,
					"assignees", d.NewCutoffs.Assignees,
				)
			}
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config: changes need a restart to take effect", "sections", d.RestartRequired)
		}
	}
}
