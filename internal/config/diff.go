package config

import (
	"reflect"

	"github.com/MrWong99/scribe/internal/resolve"
)

// ConfigDiff describes what changed between two configs.
// Log level and cutoffs can be applied to a running process; everything
// else is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CutoffsChanged bool
	NewCutoffs     resolve.Cutoffs

	// RestartRequired names the top-level sections that changed but are only
	// read at startup.
	RestartRequired []string
}

// Changed reports whether d contains any difference.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CutoffsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Matching.Cutoffs != new.Matching.Cutoffs {
		d.CutoffsChanged = true
		d.NewCutoffs = new.Matching.Cutoffs
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFile != new.Server.LogFile {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Oracle, new.Oracle) {
		d.RestartRequired = append(d.RestartRequired, "oracle")
	}
	if old.Database != new.Database {
		d.RestartRequired = append(d.RestartRequired, "database")
	}
	if old.Matching.PhoneticEnabled() != new.Matching.PhoneticEnabled() ||
		old.Matching.TokenThreshold != new.Matching.TokenThreshold {
		d.RestartRequired = append(d.RestartRequired, "matching")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if !reflect.DeepEqual(old.Chat, new.Chat) {
		d.RestartRequired = append(d.RestartRequired, "chat")
	}
	return d
}
