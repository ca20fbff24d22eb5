package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config represents logging configuration.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// DefaultConfig returns default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}

// ParseLevel parses string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func outputWriter(name string) io.Writer {
	if strings.ToLower(name) == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

// Build creates a logger from cfg without installing it.
func Build(cfg Config) Logger {
	level := ParseLevel(cfg.Level)
	w := outputWriter(cfg.Output)

	switch strings.ToLower(cfg.Format) {
	case "json":
		return NewJSONLoggerTo(w, level)
	default:
		return NewTextLoggerTo(w, level)
	}
}

// Configure sets up the default logger based on config.
func Configure(cfg Config) {
	SetDefault(Build(cfg))
}
