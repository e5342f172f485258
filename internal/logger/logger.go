// Package logger provides structured logging for the application.
// It wraps log/slog with JSON formatting and supports optional log
// shipping to Better Stack when a source token is configured.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
}

// Options configures optional logger backends.
type Options struct {
	// BetterStackToken enables log shipping to Better Stack when non-empty.
	BetterStackToken string

	// BetterStackEndpoint is the ingesting endpoint for Better Stack logs.
	BetterStackEndpoint string
}

// New creates a new logger instance with JSON formatting to stdout.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout, Options{})
}

// NewWithOptions creates a logger writing JSON to stdout and, when a
// Better Stack token is configured, shipping records there as well.
func NewWithOptions(level string, opts Options) *Logger {
	return NewWithWriter(level, os.Stdout, opts)
}

// NewWithWriter creates a new logger instance writing to the provided writer.
func NewWithWriter(level string, w io.Writer, opts Options) *Logger {
	logLevel := parseLevel(level)

	handlerOpts := &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				a.Key = "level"
				lvl := a.Value.String()
				if lvl == "WARN" {
					lvl = "warning"
				} else {
					lvl = strings.ToLower(lvl)
				}
				a.Value = slog.StringValue(lvl)
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	}

	var handler slog.Handler = slog.NewJSONHandler(w, handlerOpts)

	if opts.BetterStackToken != "" {
		bsHandler := slogbetterstack.Option{
			Token:    opts.BetterStackToken,
			Endpoint: opts.BetterStackEndpoint,
			Level:    logLevel,
		}.NewBetterstackHandler()
		handler = NewMultiHandler(handler, bsHandler)
	}

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch level {
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

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{Logger: l.With("module", module)}
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err)}
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value)}
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}
