// Package logging routes the core logger into log/slog for hosted binaries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"i2console/core"
)

// ParseLevel maps a settings level name to a core.Level.
func ParseLevel(name string) (core.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return core.LevelDebug, nil
	case "info", "":
		return core.LevelInfo, nil
	case "warn", "warning":
		return core.LevelWarn, nil
	case "error":
		return core.LevelError, nil
	}
	return core.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

func slogLevel(l core.Level) slog.Level {
	switch l {
	case core.LevelDebug:
		return slog.LevelDebug
	case core.LevelWarn:
		return slog.LevelWarn
	case core.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Install points the core logger at a text slog handler writing to w and
// returns that logger for the binary's own messages.
func Install(w io.Writer, levelName string) (*slog.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))
	core.SetLogLevel(level)
	core.SetLogWriter(func(l core.Level, msg string) {
		logger.Log(context.Background(), slogLevel(l), msg, "src", "core")
	})
	return logger, nil
}
