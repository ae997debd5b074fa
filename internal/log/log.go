package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type options struct {
	level  slog.Level
	source bool
	json   bool
	writer io.Writer
}

// Option configures the logger built by New.
type Option func(*options)

// WithLevel sets the minimal level by name: debug, info, warn or error.
// Unknown names fall back to info.
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = ParseLevel(level)
	}
}

// WithSource adds the caller file and line to every record.
func WithSource() Option {
	return func(o *options) {
		o.source = true
	}
}

// WithJSON switches the output to JSON lines.
func WithJSON() Option {
	return func(o *options) {
		o.json = true
	}
}

// WithWriter redirects the output, stderr by default.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// New creates a slog logger.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOptions := &slog.HandlerOptions{
		AddSource: o.source,
		Level:     o.level,
	}

	if o.json {
		return slog.New(slog.NewJSONHandler(o.writer, handlerOptions))
	}

	return slog.New(slog.NewTextHandler(o.writer, handlerOptions))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a verbose setting to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace", "all":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
