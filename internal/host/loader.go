package host

import (
	"context"
	"net/http"
	"sync"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
	"github.com/felixgeelhaar/sessionbridge/internal/version"
)

// Loader produces the initialize handshake. It talks to the frontend API as a
// native client with the stored authorization header and falls back to the
// store when the network is unavailable.
type Loader struct {
	store   Store
	api     *identity.Client
	logger  log.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	proxyURL string
	http     *http.Client
	logger   log.Logger
	metrics  *metrics.Metrics
}

// WithLoaderProxyURL routes frontend API calls through proxy.
func WithLoaderProxyURL(proxy string) LoaderOption {
	return func(c *loaderConfig) { c.proxyURL = proxy }
}

// WithLoaderHTTPClient sets the client used for frontend API calls.
func WithLoaderHTTPClient(hc *http.Client) LoaderOption {
	return func(c *loaderConfig) { c.http = hc }
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(l log.Logger) LoaderOption {
	return func(c *loaderConfig) { c.logger = l }
}

// WithLoaderMetrics records store writes and load sources.
func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(c *loaderConfig) { c.metrics = m }
}

// NewLoader creates a loader for publishableKey backed by store.
func NewLoader(publishableKey string, store Store, opts ...LoaderOption) (*Loader, error) {
	cfg := loaderConfig{logger: log.Noop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	api, err := identity.New(publishableKey,
		identity.WithProxyURL(cfg.proxyURL),
		identity.WithHTTPClient(cfg.http),
		identity.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	l := &Loader{store: store, api: api, logger: cfg.logger, metrics: cfg.metrics}
	api.OnBeforeRequest(l.beforeRequest)
	api.OnAfterResponse(l.afterResponse)
	return l, nil
}

// PublishableKey returns the key the loader serves.
func (l *Loader) PublishableKey() string { return l.api.PublishableKey() }

func (l *Loader) beforeRequest(ctx context.Context, req *identity.RequestInit) error {
	req.SetQuery("_is_native", "1")
	header, err := l.store.AuthorizationHeader(ctx)
	if err != nil {
		return err
	}
	if header != "" {
		req.Header.Set(ipc.AuthorizationHeaderKey, header)
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	return nil
}

func (l *Loader) afterResponse(ctx context.Context, _ *identity.RequestInit, resp *identity.Response) error {
	if resp == nil {
		return nil
	}
	header := resp.Header.Get(ipc.AuthorizationHeaderKey)
	if header == "" {
		return nil
	}
	if claims, err := InspectHeader(header); err == nil {
		l.logger.Debug(log.Params{"client": claims.ClientID}, "authorization header rotated")
	}
	return l.store.SetAuthorizationHeader(ctx, header)
}

// Initialize returns the handshake. refreshed reports whether the client
// came from the network; changed whether it differs from the cached one.
func (l *Loader) Initialize(ctx context.Context) (resp *ipc.InitializeResponse, refreshed, changed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.api.Loaded() {
		err = l.api.Refresh(ctx)
	} else {
		err = l.api.Load(ctx, identity.LoadOptions{SDKMetadata: identity.SDKMetadata{
			Name:    version.SDKName,
			Version: version.GetInfo().Version,
		}})
	}
	if err == nil {
		client, env := l.api.Snapshot(), l.api.Environment()
		changed, err = l.persist(ctx, client, env)
		if err != nil {
			return nil, false, false, err
		}
		l.observeLoad("network")
		return l.response(client, env), true, changed, nil
	}

	l.logger.Warn(log.Params{"error": err.Error()}, "frontend api unavailable, serving cached snapshots")

	client, cerr := l.store.CachedClient(ctx)
	if cerr != nil {
		return nil, false, false, cerr
	}
	env, eerr := l.store.CachedEnvironment(ctx)
	if eerr != nil {
		return nil, false, false, eerr
	}
	if client == nil && env == nil {
		return nil, false, false, errors.Wrap(errors.ErrCodeHostHandshake, "frontend api unavailable and nothing cached", err).
			WithSuggestion("Check network access to the frontend API")
	}
	l.observeLoad("cache")
	return l.response(client, env), false, false, nil
}

func (l *Loader) persist(ctx context.Context, client *snapshot.Client, env *snapshot.Environment) (bool, error) {
	if env != nil {
		if err := l.store.SetCachedEnvironment(ctx, env); err != nil {
			return false, err
		}
	}
	return CacheClient(ctx, l.store, client, l.metrics)
}

func (l *Loader) response(client *snapshot.Client, env *snapshot.Environment) *ipc.InitializeResponse {
	return &ipc.InitializeResponse{
		Environment:    env,
		Client:         client,
		PublishableKey: l.api.PublishableKey(),
	}
}

func (l *Loader) observeLoad(source string) {
	if l.metrics != nil {
		l.metrics.LoaderFetches.WithLabelValues("initialize", source).Inc()
	}
}

// CacheClient writes client to store and counts the write.
func CacheClient(ctx context.Context, store Store, client *snapshot.Client, m *metrics.Metrics) (bool, error) {
	changed, err := store.SetCachedClient(ctx, client)
	if m != nil {
		result := "skipped"
		switch {
		case err != nil:
			result = "error"
		case changed:
			result = "written"
		}
		m.StoreWrites.WithLabelValues("client", result).Inc()
	}
	return changed, err
}
