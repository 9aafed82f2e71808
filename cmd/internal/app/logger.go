package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// Log output formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
	// LogFormatAuto picks text on an interactive terminal and JSON otherwise.
	LogFormatAuto = "auto"
)

// NewLogger creates a structured logger on stdout and installs it as the default.
func NewLogger(level, format string) *slog.Logger {
	log := newLoggerTo(os.Stdout, level, resolveLogFormat(format, isTerminal(os.Stdout)), isTerminal(os.Stdout))
	slog.SetDefault(log)
	return log
}

func newLoggerTo(w io.Writer, level, format string, color bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}

	var h slog.Handler
	if format == LogFormatText {
		h = newPrettyHandler(w, opts, color)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func resolveLogFormat(format string, tty bool) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case LogFormatText:
		return LogFormatText
	case LogFormatAuto:
		if tty {
			return LogFormatText
		}
		return LogFormatJSON
	default:
		return LogFormatJSON
	}
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd())) // #nosec G115 -- fd fits in int.
}
