// Package sessionbridge keeps one identity session consistent across every
// window of a desktop application.
//
// A window calls Init once its host is reachable:
//
//	session, err := sessionbridge.Init(ctx, sessionbridge.LoadOptions{}, sessionbridge.ConsoleLogger())
//
// Init patches http.DefaultTransport so frontend API requests leave through
// the native host, performs the host handshake, and keeps the returned
// session in sync with the other windows. Calling Init again returns the same
// session.
package sessionbridge

import (
	"context"
	"os"
	"sync"

	"github.com/felixgeelhaar/sessionbridge/internal/bootstrap"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
)

// Environment variables read by the default bridge.
const (
	EnvIPCURL      = "SESSIONBRIDGE_IPC_URL"
	EnvWindowLabel = "SESSIONBRIDGE_WINDOW_LABEL"
	EnvOrigin      = "SESSIONBRIDGE_ORIGIN"
)

type (
	// Bridge is one window's session bridge.
	Bridge = bootstrap.Bridge
	// Config configures a Bridge.
	Config = bootstrap.Config
	// Session is the identity session shared by a window.
	Session = identity.Client
	// LoadOptions are passed to the session's Load.
	LoadOptions = identity.LoadOptions
	// State is what session listeners receive.
	State = identity.State
	// Logger is the logging contract used across the bridge.
	Logger = log.Logger
	// LoggerParams are structured logging fields.
	LoggerParams = log.Params
)

var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
	defaultErr    error
)

// New builds a bridge from cfg.
func New(cfg Config) (*Bridge, error) {
	return bootstrap.New(cfg)
}

// Default returns the process-wide bridge, built on first use from the
// SESSIONBRIDGE_* environment.
func Default() (*Bridge, error) {
	defaultOnce.Do(func() {
		defaultBridge, defaultErr = bootstrap.New(Config{
			IPCURL:      os.Getenv(EnvIPCURL),
			WindowLabel: os.Getenv(EnvWindowLabel),
			Origin:      os.Getenv(EnvOrigin),
		})
	})
	return defaultBridge, defaultErr
}

// Init initializes the default bridge. A nil logger keeps the current one.
func Init(ctx context.Context, opts LoadOptions, logger Logger) (*Session, error) {
	b, err := Default()
	if err != nil {
		return nil, err
	}
	return b.Init(ctx, opts, logger)
}

// SetLogger replaces the default bridge's logger.
func SetLogger(l Logger) error {
	b, err := Default()
	if err != nil {
		return err
	}
	b.SetLogger(l)
	return nil
}

// ConsoleLogger writes to stderr.
func ConsoleLogger() Logger { return log.Console() }

// NoopLogger discards everything.
func NoopLogger() Logger { return log.Noop() }
