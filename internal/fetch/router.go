package fetch

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
)

// Route names a routing decision.
type Route string

const (
	RouteMediated  Route = "mediated"
	RouteRewritten Route = "rewritten"
	RouteDirect    Route = "direct"
)

// Router picks a transport per request.
//
// Requests carrying the x-tauri-fetch marker go to the mediated transport and
// its response is returned untouched. Direct requests to the host's HTTP
// plugin entry point get User-Agent and Origin appended to their clientConfig
// headers. Everything else passes through to the real transport.
type Router struct {
	real      http.RoundTripper
	mediated  http.RoundTripper
	userAgent string
	origin    string
	logger    log.Logger
	observe   func(Route)
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithUserAgent sets the User-Agent injected into plugin fetch bodies.
func WithUserAgent(ua string) RouterOption {
	return func(r *Router) { r.userAgent = ua }
}

// WithOrigin sets the page origin injected into plugin fetch bodies.
func WithOrigin(origin string) RouterOption {
	return func(r *Router) { r.origin = origin }
}

// WithLogger sets the router's logger.
func WithLogger(l log.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRouteObserver is called once per request with the chosen route.
func WithRouteObserver(fn func(Route)) RouterOption {
	return func(r *Router) { r.observe = fn }
}

// NewRouter creates a router over the real and mediated transports.
func NewRouter(real, mediated http.RoundTripper, opts ...RouterOption) *Router {
	r := &Router{
		real:     real,
		mediated: mediated,
		logger:   log.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RoundTrip implements http.RoundTripper.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	if HasHeader(req.Header, MarkerTauriFetch) {
		r.note(RouteMediated, req)
		return r.mediated.RoundTrip(req)
	}

	if req.URL != nil && req.URL.Path == PluginFetchPath && req.Body != nil && req.Body != http.NoBody {
		rewritten, err := r.rewrite(req)
		if err != nil {
			return nil, err
		}
		r.note(RouteRewritten, req)
		return r.real.RoundTrip(rewritten)
	}

	r.note(RouteDirect, req)
	return r.real.RoundTrip(req)
}

func (r *Router) note(route Route, req *http.Request) {
	r.logger.Debug(log.Params{"route": string(route), "method": req.Method, "url": req.URL.Redacted()}, "routing request")
	if r.observe != nil {
		r.observe(route)
	}
}

// rewrite returns a clone of req whose clientConfig headers carry the page's
// User-Agent and Origin. The original body is consumed and closed.
func (r *Router) rewrite(req *http.Request) (*http.Request, error) {
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, errors.NewMalformedBodyError("read failed", err)
	}

	body, err := ParsePluginFetchBody(raw)
	if err != nil {
		return nil, errors.NewMalformedBodyError("clientConfig does not match the expected shape", err)
	}

	cfg := &body.ClientConfig
	noOrigin := HasTuple(cfg.Headers, MarkerNoOrigin)
	cfg.Headers = append(cfg.Headers, HeaderTuple{"User-Agent", r.userAgent})
	if noOrigin {
		cfg.Headers = append(cfg.Headers, HeaderTuple{"Origin", ""})
	} else {
		cfg.Headers = append(cfg.Headers, HeaderTuple{"Origin", r.origin})
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewMalformedBodyError("re-encode failed", err)
	}

	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(out))
	clone.ContentLength = int64(len(out))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(out)), nil
	}
	return clone, nil
}
