package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Logger is the interface for QuantaOpt logging
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
	Enabled(level slog.Level) bool
}

// logger wraps slog.Logger
type logger struct {
	slog *slog.Logger
}

var (
	// Default logger instance
	defaultLogger Logger
)

func init() {
	// Optimizer output goes to stdout, so diagnostics default to stderr
	defaultLogger = NewJSONLoggerTo(os.Stderr, slog.LevelInfo)
}

// SetDefault sets the default logger
func SetDefault(l Logger) {
	defaultLogger = l
}

// Default returns the default logger
func Default() Logger {
	return defaultLogger
}

// New creates a new logger with the given handler
func New(handler slog.Handler) Logger {
	return &logger{slog: slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// NewTextLoggerTo creates a text logger writing to w
func NewTextLoggerTo(w io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return &logger{slog: slog.New(slog.NewTextHandler(w, opts))}
}

// NewJSONLoggerTo creates a JSON logger writing to w
func NewJSONLoggerTo(w io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}
	return &logger{slog: slog.New(slog.NewJSONHandler(w, opts))}
}

func (l *logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

func (l *logger) With(args ...any) Logger {
	return &logger{slog: l.slog.With(args...)}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	// slog doesn't have WithContext method, just return self for now
	return l
}

func (l *logger) Enabled(level slog.Level) bool {
	return l.slog.Enabled(context.Background(), level)
}

// Helper functions for structured logging

// String returns a string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an int attribute
func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

// Int64 returns an int64 attribute
func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}

// Bool returns a bool attribute
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns a duration attribute
func Duration(key string, value time.Duration) slog.Attr {
	return slog.Duration(key, value)
}

// Any returns an any attribute
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Latency logs the latency of an operation at debug level
func Latency(start time.Time, operation string) {
	latency := time.Since(start)
	_, file, line, _ := runtime.Caller(1)
	defaultLogger.Debug("operation completed",
		String("operation", operation),
		Duration("latency", latency),
		String("caller", fmt.Sprintf("%s:%d", file, line)),
	)
}

// Package-level convenience functions

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}
