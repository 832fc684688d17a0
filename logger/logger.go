// Package logger builds the zerolog logger and carries it through contexts.
//
// The engine and handlers log with zerolog.Ctx(ctx), so every helper here
// attaches the logger with zerolog's own context key.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Format      string
	Output      io.Writer
}

func New(opts Options) zerolog.Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if opts.Format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)
}

// ParseLevel falls back to info on empty or unknown input.
func ParseLevel(value string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(s); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

// FromContext returns the logger attached to ctx, or a disabled one.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

func WithField(ctx context.Context, key string, value any) context.Context {
	l := zerolog.Ctx(ctx).With().Interface(key, value).Logger()
	return l.WithContext(ctx)
}

func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := zerolog.Ctx(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("user_id", userID).Logger()
	return l.WithContext(ctx)
}
