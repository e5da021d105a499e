// Package log provides the pluggable structured logger shared by the bridge,
// the host and the CLI.
//
// Every logger takes a map of named parameters plus a message. Three sinks are
// built in: a console sink on top of log/slog, a no-op sink, and an adapter for
// zerolog. The active logger lives in a Slot so it can be swapped at runtime.
package log

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	bridgeerrors "github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// Params carries named structured fields for a log record.
type Params map[string]any

// Logger is the contract every sink implements.
type Logger interface {
	Debug(params Params, msg string)
	Info(params Params, msg string)
	Warn(params Params, msg string)
	Error(params Params, err error, msg string)
}

// SlogLogger writes records through log/slog.
type SlogLogger struct {
	slog   *slog.Logger
	config Config
}

// New creates a SlogLogger with the given configuration
func New(config Config) *SlogLogger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output.Writer(), opts)
	default:
		handler = slog.NewTextHandler(config.Output.Writer(), opts)
	}

	l := slog.New(handler)
	if config.Component != "" {
		l = l.With("component", config.Component)
	}

	return &SlogLogger{
		slog:   l,
		config: config,
	}
}

// Console returns the default console-writing sink.
func Console() Logger {
	return New(DefaultConfig())
}

// Debug logs a debug message
func (l *SlogLogger) Debug(params Params, msg string) {
	l.slog.Debug(msg, attrs(params)...)
}

// Info logs an info message
func (l *SlogLogger) Info(params Params, msg string) {
	l.slog.Info(msg, attrs(params)...)
}

// Warn logs a warning message
func (l *SlogLogger) Warn(params Params, msg string) {
	l.slog.Warn(msg, attrs(params)...)
}

// Error logs an error message. Coded errors get their code, suggestions and
// cause broken out into separate fields.
func (l *SlogLogger) Error(params Params, err error, msg string) {
	args := attrs(params)

	var be *bridgeerrors.BridgeError
	switch {
	case err == nil:
	case errors.As(err, &be):
		args = append(args, "error", be.Message, "error_code", string(be.Code))
		if len(be.Suggestions) > 0 {
			args = append(args, "suggestions", be.Suggestions)
		}
		if be.Cause != nil {
			args = append(args, "cause", be.Cause.Error())
		}
	default:
		args = append(args, "error", err.Error())
	}

	l.slog.Error(msg, args...)
}

// Enabled returns whether the logger is enabled for the given level
func (l *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}

// Config returns the logger configuration
func (l *SlogLogger) Config() Config {
	return l.config
}

// attrs flattens params into slog key/value pairs in a stable order.
func attrs(params Params) []any {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(params)*2)
	for _, k := range keys {
		out = append(out, k, params[k])
	}
	return out
}

type noopLogger struct{}

// Noop returns a sink that discards everything.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(Params, string)        {}
func (noopLogger) Info(Params, string)         {}
func (noopLogger) Warn(Params, string)         {}
func (noopLogger) Error(Params, error, string) {}
