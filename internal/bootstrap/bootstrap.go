// Package bootstrap wires one window's session bridge: the patched transport,
// the host handshake, the identity client singleton, its interceptors and the
// cross-window sync engine.
package bootstrap

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/sessionbridge/internal/authsync"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/fetch"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
	"github.com/felixgeelhaar/sessionbridge/internal/telemetry"
	"github.com/felixgeelhaar/sessionbridge/internal/version"
)

// DefaultWindowLabel is used when Config.WindowLabel is empty.
const DefaultWindowLabel = "main"

// Host is the part of the native host Init talks to.
type Host interface {
	Initialize(ctx context.Context) (*ipc.InitializeResponse, error)
	AuthorizationHeader(ctx context.Context) (string, error)
	SetAuthorizationHeader(ctx context.Context, header string) error
}

// Config configures a Bridge.
type Config struct {
	// IPCURL is the base URL of the host's command endpoint.
	IPCURL string
	// WindowLabel identifies this window on the event channel.
	WindowLabel string
	// Origin is injected into direct plugin fetch bodies.
	Origin string
	// UserAgent is injected into direct plugin fetch bodies.
	UserAgent string
	// ProxyURL overrides the frontend API host.
	ProxyURL string
	// TransportSlot is the transport the patcher swaps. Nil means
	// http.DefaultTransport.
	TransportSlot *http.RoundTripper
	// Diagnostics receives messages that must reach the developer whatever
	// logger is installed. Defaults to stderr.
	Diagnostics io.Writer

	// Bus, Host and Metrics replace the defaults built from IPCURL.
	Bus     events.Bus
	Host    Host
	Metrics *metrics.Metrics
}

// Bridge is the per-process context object of a window.
type Bridge struct {
	cfg     Config
	slot    *log.Slot
	patcher *fetch.Patcher
	ipc     *ipc.Client
	host    Host
	bus     events.Bus
	engine  *authsync.Engine
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	session *identity.Client
}

// New builds a bridge. Nothing is patched or contacted until Init.
func New(cfg Config) (*Bridge, error) {
	if cfg.WindowLabel == "" {
		cfg.WindowLabel = DefaultWindowLabel
	}
	if cfg.WindowLabel == snapshot.HostSource {
		return nil, errReservedLabel
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.GetInfo().UserAgent()
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = os.Stderr
	}

	b := &Bridge{
		cfg:     cfg,
		slot:    log.NewSlot(nil),
		patcher: fetch.NewPatcher(cfg.TransportSlot),
		metrics: cfg.Metrics,
	}

	// The IPC client reads the patched slot so the HTTP plugin entry point
	// goes through the router's rewrite path.
	if cfg.IPCURL != "" {
		client, err := ipc.New(cfg.IPCURL, ipc.WithHTTPClient(&http.Client{
			Transport: b.patcher.Ambient(),
			Timeout:   ipc.DefaultTimeout,
		}))
		if err != nil {
			return nil, err
		}
		b.ipc = client
	}

	b.host = cfg.Host
	if b.host == nil {
		if b.ipc == nil {
			return nil, errMissingHost
		}
		b.host = b.ipc
	}

	b.bus = cfg.Bus
	if b.bus == nil {
		if b.ipc == nil {
			return nil, errMissingHost
		}
		remote, err := events.NewRemote(b.ipc, cfg.IPCURL)
		if err != nil {
			return nil, err
		}
		b.bus = remote
	}

	logger := b.slot.Logger()
	b.engine = authsync.New(b.bus, cfg.WindowLabel,
		authsync.WithLogger(logger),
		authsync.WithObserver(func(o authsync.Outcome) { b.metrics.ObserveSync(string(o)) }),
	)

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// Label returns the window label.
func (b *Bridge) Label() string { return b.cfg.WindowLabel }

// Logger returns a logger that follows the bridge's current logger.
func (b *Bridge) Logger() log.Logger { return b.slot.Logger() }

// SetLogger replaces the bridge's logger.
func (b *Bridge) SetLogger(l log.Logger) { b.slot.Set(l) }

// Engine returns the sync engine.
func (b *Bridge) Engine() *authsync.Engine { return b.engine }

// Patcher returns the transport patcher.
func (b *Bridge) Patcher() *fetch.Patcher { return b.patcher }

// Session returns the session singleton, or nil before the first Init.
func (b *Bridge) Session() *identity.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Close stops the sync engine. The transport patch stays in place.
func (b *Bridge) Close() {
	b.cancel()
	b.engine.Close()
}

// Patch installs the fetch router on the transport slot. Later calls do
// nothing.
func (b *Bridge) Patch() {
	var mediated http.RoundTripper = unavailableTransport{}
	if b.ipc != nil {
		mediated = fetch.NewMediatedTransport(b.ipc)
	}
	b.patcher.Apply(func(real http.RoundTripper) http.RoundTripper {
		return fetch.NewRouter(real, mediated,
			fetch.WithUserAgent(b.cfg.UserAgent),
			fetch.WithOrigin(b.cfg.Origin),
			fetch.WithLogger(b.slot.Logger()),
			fetch.WithRouteObserver(func(r fetch.Route) { b.metrics.ObserveRoute(string(r)) }),
		)
	})
}

// Init brings the window's session up: it patches the transport, installs
// logger, performs the host handshake, builds or reuses the session, wires
// sync and interceptors and loads the session from the handshake snapshots.
// Any failure from the handshake on is returned; nothing is retried.
func (b *Bridge) Init(ctx context.Context, opts identity.LoadOptions, logger log.Logger) (_ *identity.Client, err error) {
	b.Patch()
	if logger != nil {
		b.slot.Set(logger)
	}
	lg := b.slot.Logger()

	ctx, span := telemetry.StartBridgeSpan(ctx, "init", b.cfg.WindowLabel)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			b.metrics.RecordError("bootstrap", err)
		}
		span.End()
	}()

	handshake, err := b.host.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	session, created, err := b.sessionFor(handshake.PublishableKey)
	if err != nil {
		return nil, err
	}

	if created {
		if err := b.engine.Listen(b.ctx, session); err != nil {
			log.LogError(lg, "failed to initialize auth event listener")(err)
		}
		session.AddListener(b.engine.Listener(b.ctx))
	}

	client, env := handshake.Client, handshake.Environment
	session.SetCachedResources(func() (identity.Resources, bool) {
		return identity.Resources{Client: client, Environment: env}, client != nil || env != nil
	})

	session.OnBeforeRequest(b.beforeRequest)
	session.OnAfterResponse(b.afterResponse)

	opts.SDKMetadata = identity.SDKMetadata{
		Name:        version.SDKName,
		Version:     version.GetInfo().Version,
		Environment: opts.SDKMetadata.Environment,
	}
	opts.StandardBrowser = false
	if err := session.Load(ctx, opts); err != nil {
		return nil, err
	}

	telemetry.RecordSuccess(span, attribute.Bool("created", created))
	lg.Info(log.Params{"window": b.cfg.WindowLabel, "created": created}, "session bridge initialized")
	return session, nil
}

func (b *Bridge) sessionFor(publishableKey string) (*identity.Client, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		if b.session.PublishableKey() != publishableKey {
			b.slot.Get().Warn(log.Params{
				"current":  b.session.PublishableKey(),
				"received": publishableKey,
			}, "host returned a different publishable key; keeping the existing session")
		}
		return b.session, false, nil
	}

	session, err := identity.New(publishableKey,
		identity.WithProxyURL(b.cfg.ProxyURL),
		identity.WithHTTPClient(&http.Client{Transport: b.patcher.Ambient()}),
		identity.WithLogger(b.slot.Logger()),
	)
	if err != nil {
		return nil, false, err
	}
	b.session = session
	return session, true, nil
}
