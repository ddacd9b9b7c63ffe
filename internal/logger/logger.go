// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ParseLevel maps a --log-level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to w. Terminals get the colored tint handler;
// everything else gets plain key=value text.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if isTerminal(w) {
		return slog.New(newTerminalHandler(w, level))
	}
	return slog.New(newTextHandler(w, level))
}

// terminal is implemented by writers that front a terminal themselves, such
// as the progress display.
type terminal interface {
	IsTerminal() bool
}

func isTerminal(w io.Writer) bool {
	switch w := w.(type) {
	case terminal:
		return w.IsTerminal()
	case *os.File:
		return isatty.IsTerminal(w.Fd())
	}
	return false
}

func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				return slog.String(a.Key, strings.ToLower(lvl.String()))
			}
			return a
		},
	})
}

func newTerminalHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		NoColor:    runtime.GOOS == "windows",
		AddSource:  level <= slog.LevelDebug,
		Level:      level,
		TimeFormat: "15:04:05",
	})
}
