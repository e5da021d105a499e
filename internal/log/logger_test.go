package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	bridgeerrors "github.com/felixgeelhaar/sessionbridge/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "development config", config: DevelopmentConfig()},
		{
			name: "custom config json",
			config: Config{
				Level:     LevelDebug,
				Format:    FormatJSON,
				Output:    OutputStdout(),
				AddSource: true,
			},
		},
		{
			name: "component",
			config: Config{
				Level:     LevelWarn,
				Format:    FormatText,
				Output:    OutputStderr(),
				Component: "fetch",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.config)
			if logger == nil {
				t.Fatal("expected logger, got nil")
			}
			if logger.slog == nil {
				t.Fatal("expected slog logger, got nil")
			}
			if logger.Config().Level != tt.config.Level {
				t.Errorf("expected level %v, got %v", tt.config.Level, logger.Config().Level)
			}
		})
	}
}

func jsonLogger(buf *bytes.Buffer, level Level) *SlogLogger {
	return New(Config{
		Level:  level,
		Format: FormatJSON,
		Output: NewOutput(buf),
	})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		logFunc   func(Logger)
		shouldLog bool
	}{
		{"debug at debug", LevelDebug, func(l Logger) { l.Debug(nil, "m") }, true},
		{"debug at info", LevelInfo, func(l Logger) { l.Debug(nil, "m") }, false},
		{"info at info", LevelInfo, func(l Logger) { l.Info(nil, "m") }, true},
		{"info at warn", LevelWarn, func(l Logger) { l.Info(nil, "m") }, false},
		{"warn at warn", LevelWarn, func(l Logger) { l.Warn(nil, "m") }, true},
		{"error at error", LevelError, func(l Logger) { l.Error(nil, nil, "m") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(jsonLogger(&buf, tt.level))

			if got := buf.Len() > 0; got != tt.shouldLog {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.shouldLog, buf.String())
			}
		})
	}
}

func TestLoggerParams(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, LevelDebug).Info(Params{"label": "main", "count": 2}, "tauri event received")

	entry := decode(t, &buf)
	if entry["msg"] != "tauri event received" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["label"] != "main" {
		t.Errorf("label = %v", entry["label"])
	}
	if entry["count"] != float64(2) {
		t.Errorf("count = %v", entry["count"])
	}
}

func TestLoggerErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, LevelDebug).Error(Params{}, errors.New("boom"), "emit failed")

	entry := decode(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
	if _, ok := entry["error_code"]; ok {
		t.Error("plain errors should not carry an error_code")
	}
}

func TestLoggerErrorCoded(t *testing.T) {
	var buf bytes.Buffer
	err := bridgeerrors.Wrap(bridgeerrors.ErrCodeSyncEmit, "emit failed", errors.New("socket closed")).
		WithSuggestion("check the host is running")

	jsonLogger(&buf, LevelDebug).Error(nil, err, "broadcast failed")

	entry := decode(t, &buf)
	if entry["error_code"] != string(bridgeerrors.ErrCodeSyncEmit) {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["cause"] != "socket closed" {
		t.Errorf("cause = %v", entry["cause"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("expected suggestions field")
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&buf), Component: "sync"})
	l.Info(nil, "started")

	if entry := decode(t, &buf); entry["component"] != "sync" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestLoggerEnabled(t *testing.T) {
	l := New(Config{Level: LevelWarn, Format: FormatText, Output: NewOutput(&bytes.Buffer{})})
	ctx := context.Background()

	if l.Enabled(ctx, LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNoop(t *testing.T) {
	l := Noop()
	l.Debug(Params{"a": 1}, "x")
	l.Info(nil, "x")
	l.Warn(nil, "x")
	l.Error(nil, errors.New("x"), "x")
}

func TestZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := Zerolog(zerolog.New(&buf))

	l.Warn(Params{"rid": 7}, "slow host")
	l.Error(Params{}, errors.New("boom"), "failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first["level"] != "warn" || first["rid"] != float64(7) || first["message"] != "slow host" {
		t.Errorf("unexpected first entry %v", first)
	}
	if second["level"] != "error" || second["error"] != "boom" {
		t.Errorf("unexpected second entry %v", second)
	}
}
