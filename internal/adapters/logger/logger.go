package logger

import (
	"io"
	"log/slog"
	"os"

	"go.nozem.dev/nozem/internal/core/ports"
)

// Logger implements ports.Logger with a PrettyHandler-backed slog.Logger.
type Logger struct {
	logger *slog.Logger
}

var _ ports.Logger = (*Logger)(nil)

// New creates a Logger writing to os.Stderr at the level NOZEM_LOG_LEVEL
// requests (the CLI's -v/--verbose flag sets this to "debug" before the
// logger node resolves), defaulting to info.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a Logger writing to w, for tests and for redirecting
// build output to a file.
func NewWithWriter(w io.Writer) *Logger {
	return newWithHandler(NewPrettyHandler(w, &slog.HandlerOptions{Level: levelFromEnv()}))
}

func levelFromEnv() slog.Level {
	if os.Getenv("NOZEM_LOG_LEVEL") == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newWithHandler(h slog.Handler) *Logger {
	return &Logger{logger: slog.New(h)}
}

// Debug implements ports.Logger.
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info implements ports.Logger.
func (l *Logger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn implements ports.Logger.
func (l *Logger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error implements ports.Logger.
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// With implements ports.Logger, returning a new Logger that carries the
// given key/value pairs on every subsequent call, without mutating l.
func (l *Logger) With(args ...any) ports.Logger {
	return &Logger{logger: l.logger.With(args...)}
}
