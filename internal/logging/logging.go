package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// New creates the process logger. Format "auto" picks a text handler on a
// terminal and JSON otherwise.
func New(level, format string) *slog.Logger {
	return NewFile(os.Stdout, level, format)
}

// NewFile is New writing to f instead of stdout.
func NewFile(f *os.File, level, format string) *slog.Logger {
	return newWithWriter(f, level, format, isatty.IsTerminal(f.Fd()))
}

func newWithWriter(w io.Writer, level, format string, tty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelFromString(level)}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		if tty {
			handler = slog.NewTextHandler(w, opts)
		} else {
			handler = slog.NewJSONHandler(w, opts)
		}
	}
	return slog.New(handler)
}

func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
