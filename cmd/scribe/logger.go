package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/scribe/internal/config"
)

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// fileLogger returns a logger writing to stderr and, when lf.Path is set, to a
// rotating log file. The returned close function releases the file.
func fileLogger(lf config.LogFileConfig, level slog.Leveler) (*slog.Logger, func() error) {
	if lf.Path == "" {
		return newLogger(os.Stderr, level), func() error { return nil }
	}
	rotator := &lumberjack.Logger{
		Filename:   lf.Path,
		MaxSize:    lf.MaxSizeMB,
		MaxBackups: lf.MaxBackups,
		MaxAge:     lf.MaxAgeDays,
		Compress:   lf.Compress,
	}
	return newLogger(io.MultiWriter(os.Stderr, rotator), level), rotator.Close
}
