// Package logger builds the structured slog logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// NewLogger initializes a new slog logger based on the provided configuration.
// When output is nil the writer is chosen from cfg.Output.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = openOutput(cfg.Output)
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		*level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler).With("service", "metroid")
}

// OutputWriter returns the writer named by output: stdout, stderr, or "file"
// (metroid.log in the working directory). Unknown values fall back to stdout.
func OutputWriter(output string) io.Writer {
	return openOutput(output)
}

func openOutput(output string) io.Writer {
	switch output {
	case "stderr":
		return os.Stderr
	case "file":
		file, err := os.OpenFile("metroid.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			return os.Stdout
		}
		return file
	default:
		return os.Stdout
	}
}

// ForSubscription returns a child logger annotated with a subscription's identity.
func ForSubscription(l *slog.Logger, topicName, subscriptionName string) *slog.Logger {
	return l.With("topic", topicName, "subscription", subscriptionName)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
