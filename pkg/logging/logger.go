package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger on stdout with the specified level
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w. Tests use it to capture
// output.
func NewWithWriter(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		l = Default()
	}
	return &Logger{Logger: l.Logger.With("component", name)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
