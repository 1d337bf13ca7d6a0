package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Setup initialises the global slog default logger.
// level may be "debug", "info", "warn", or "error" (default "info").
// format may be "json", "text" or "auto" (default "json"); "auto" picks text
// when stdout is a terminal.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if useText(format, os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func useText(format string, fd uintptr) bool {
	switch strings.ToLower(format) {
	case "text":
		return true
	case "auto":
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	default:
		return false
	}
}
