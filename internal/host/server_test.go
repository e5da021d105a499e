package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/fetch"
	"github.com/felixgeelhaar/sessionbridge/internal/identity/identitytest"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

type testHost struct {
	server *Server
	http   *httptest.Server
	ipc    *ipc.Client
	hub    *events.Hub
	store  Store
	api    *identitytest.Server
	reg    *prometheus.Registry
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()

	api := identitytest.NewServer(t, identitytest.SignedInClient())
	store := NewMemoryStore()
	reg, m := metrics.NewRegistry()
	hub := events.NewHub()

	srv, err := NewServer(Config{
		Loader:   newLoader(t, api, store, m),
		Store:    store,
		Hub:      hub,
		Metrics:  m,
		Gatherer: reg,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})

	client, err := ipc.New(ts.URL)
	require.NoError(t, err)

	return &testHost{server: srv, http: ts, ipc: client, hub: hub, store: store, api: api, reg: reg}
}

func TestServerInitializeAnnouncesFreshClient(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	sub, err := h.hub.Subscribe(ctx, snapshot.AuthEventName)
	require.NoError(t, err)
	defer sub.Close()

	resp, err := h.ipc.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, identitytest.Key(), resp.PublishableKey)
	assert.Equal(t, "client_1", resp.Client.ID)

	select {
	case ev := <-sub.C:
		decoded, err := snapshot.DecodeEvent(ev.Payload)
		require.NoError(t, err)
		assert.Equal(t, snapshot.HostSource, decoded.Source)
		assert.Equal(t, "sess_1", decoded.Payload.Session.ID)
		assert.Equal(t, "org_1", decoded.Payload.Organization.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no host announcement")
	}
}

func TestServerAuthorizationHeader(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	header, err := h.ipc.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Empty(t, header, "null maps to empty")

	require.NoError(t, h.ipc.SetAuthorizationHeader(ctx, "Bearer abc"))
	header, err = h.ipc.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", header)
}

func TestServerMediatedFetch(t *testing.T) {
	var seen *http.Request
	var seenBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.Header().Set("Authorization", "Bearer next")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	h := newTestHost(t)
	transport := fetch.NewMediatedTransport(h.ipc)

	req, err := http.NewRequest(http.MethodPost, upstream.URL+"/v1/client?_is_native=1", strings.NewReader("a=b"))
	require.NoError(t, err)
	req.Header.Set("x-tauri-fetch", "1")
	req.Header.Set("x-no-origin", "1")
	req.Header.Set("Authorization", "Bearer mine")

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "Bearer next", resp.Header.Get("Authorization"))

	require.NotNil(t, seen)
	assert.Equal(t, "a=b", seenBody)
	assert.Equal(t, "Bearer mine", seen.Header.Get("Authorization"))
	assert.Empty(t, seen.Header.Get("x-tauri-fetch"), "markers stay local")
	assert.Empty(t, seen.Header.Get("x-no-origin"))
	assert.Zero(t, h.server.resources.len(), "resources are consumed")
}

func TestServerPluginFetchErrors(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	err := h.ipc.Invoke(ctx, ipc.CmdHTTPFetch, map[string]any{"clientConfig": map[string]any{"url": 1}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	err = h.ipc.Invoke(ctx, ipc.CmdHTTPFetchSend, fetch.RIDRequest{RID: 42}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, _, err = h.ipc.InvokeRaw(ctx, ipc.CmdHTTPFetchReadBody, fetch.RIDRequest{RID: 42})
	require.Error(t, err)
}

func TestOutgoingHeader(t *testing.T) {
	h := outgoingHeader([]fetch.HeaderTuple{
		{"x-tauri-fetch", "1"},
		{"x-mobile", "1"},
		{"accept", "application/json"},
		{"User-Agent", "first"},
		{"User-Agent", "second"},
		{"Origin", "http://tauri.localhost"},
		{"Origin", ""},
	})

	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, []string{"second"}, h.Values("User-Agent"))
	assert.Empty(t, h.Values("Origin"))
	assert.Equal(t, "1", h.Get("X-Mobile"), "the identity provider reads x-mobile")
}

func TestServerEventStream(t *testing.T) {
	h := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote, err := events.NewRemote(h.ipc, h.http.URL)
	require.NoError(t, err)

	sub, err := remote.Subscribe(ctx, snapshot.AuthEventName)
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool {
		// The host listener is subscribed too.
		return h.hub.Subscribers(snapshot.AuthEventName) == 2
	}, 2*time.Second, 10*time.Millisecond)

	ev := snapshot.AuthEvent{Source: "settings", Payload: snapshot.PayloadFor(identitytest.SignedInClient())}
	require.NoError(t, remote.Emit(ctx, snapshot.AuthEventName, ev))

	select {
	case got := <-sub.C:
		decoded, err := snapshot.DecodeEvent(got.Payload)
		require.NoError(t, err)
		assert.Equal(t, "settings", decoded.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("event not streamed")
	}

	require.Eventually(t, func() bool {
		c, err := h.store.CachedClient(ctx)
		return err == nil && c != nil && c.ID == "client_1"
	}, 2*time.Second, 10*time.Millisecond, "host listener caches window clients")
}

func TestServerEmitRejectsMalformed(t *testing.T) {
	h := newTestHost(t)
	err := h.ipc.Invoke(context.Background(), ipc.CmdEventEmit, map[string]any{"payload": 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestServerHealthAndMetrics(t *testing.T) {
	h := newTestHost(t)

	resp, err := http.Get(h.http.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Handler-only servers are never marked initialized.
	resp, err = http.Get(h.http.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	h.server.probes.MarkInitialized()
	resp, err = http.Get(h.http.URL + "/health/ready")
	require.NoError(t, err)
	var ready map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", ready["status"])

	_, err = h.ipc.AuthorizationHeader(context.Background())
	require.NoError(t, err)

	resp, err = http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `sessionbridge_host_commands_total{command="plugin:clerk|get_client_authorization_header",status="success"} 1`)
}

func TestServerFetchSendRejectsOversizedResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 8+len(r.URL.Query().Get("extra")))))
	}))
	defer upstream.Close()

	h := newTestHost(t)
	h.server.cfg.MaxBodyBytes = 8
	ctx := context.Background()

	send := func(url string) (any, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		require.NoError(t, err)
		args, err := json.Marshal(fetch.RIDRequest{RID: h.server.resources.addRequest(req)})
		require.NoError(t, err)
		return h.server.httpFetchSend(ctx, args)
	}

	out, err := send(upstream.URL)
	require.NoError(t, err, "a body of exactly the limit fits")
	assert.Equal(t, http.StatusOK, out.(fetch.FetchSendResponse).Status)

	_, err = send(upstream.URL + "?extra=1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFetchMediated))
	assert.Contains(t, err.Error(), "too large")
}
