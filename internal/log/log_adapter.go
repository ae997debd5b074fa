package log

import (
	"context"
	"log"
	"log/slog"
	"strings"
)

type logAdapter struct {
	slog  *slog.Logger
	level slog.Level
}

// NewLogAdapter exposes a slog logger as a stdlib *log.Logger at info level.
func NewLogAdapter(logger *slog.Logger) *log.Logger {
	return NewLevelLogAdapter(logger, slog.LevelInfo)
}

// NewLevelLogAdapter is NewLogAdapter with an explicit level.
func NewLevelLogAdapter(logger *slog.Logger, level slog.Level) *log.Logger {
	return log.New(&logAdapter{slog: logger, level: level}, "", 0)
}

func (a *logAdapter) Write(p []byte) (n int, err error) {
	// Forward the line to slog without the trailing newline
	a.slog.Log(context.Background(), a.level, strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
