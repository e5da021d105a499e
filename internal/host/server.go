package host

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/health"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
	"github.com/felixgeelhaar/sessionbridge/internal/telemetry"
	"github.com/felixgeelhaar/sessionbridge/internal/version"
)

// DefaultMaxBodyBytes bounds request arguments and proxied response bodies.
const DefaultMaxBodyBytes = 10 << 20

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:1430".
	Addr string

	Loader *Loader
	Store  Store
	Hub    *events.Hub
	Logger log.Logger

	// Metrics and Gatherer back the /metrics endpoint. Both are optional.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// HTTPClient executes HTTP plugin requests. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	// ShutdownTimeout bounds connection draining. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	MaxBodyBytes int64

	// ResourceTTL bounds how long unclaimed HTTP plugin requests and
	// response bodies are kept. Defaults to DefaultResourceTTL.
	ResourceTTL time.Duration
}

// Server serves host commands, the event stream and health probes.
type Server struct {
	cfg        Config
	router     *mux.Router
	httpServer *http.Server
	probes     *health.ProbeManager
	resources  *resourceTable
	listener   *Listener
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the host server. It starts the host listener on the hub.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Loader == nil || cfg.Store == nil || cfg.Hub == nil {
		return nil, errors.New(errors.ErrCodeHostHandshake, "host server needs a loader, a store and a hub")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Noop()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		cfg:       cfg,
		probes:    health.NewProbeManager(version.GetInfo().Version),
		resources: newResourceTable(cfg.ResourceTTL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.probes.AddChecker(health.Ping("store", cfg.Store.Ping))

	s.listener = NewListener(cfg.Hub, cfg.Store, cfg.Logger, cfg.Metrics)
	if err := s.listener.Start(s.ctx); err != nil {
		s.cancel()
		return nil, err
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.HandlerFor(s.cfg.Gatherer)).Methods(http.MethodGet)
	}

	commands := map[string]commandFunc{
		ipc.CmdInitialize:       s.initialize,
		ipc.CmdGetAuthorization: s.getAuthorization,
		ipc.CmdSetAuthorization: s.setAuthorization,
		ipc.CmdHTTPFetch:        s.httpFetch,
		ipc.CmdHTTPFetchSend:    s.httpFetchSend,
		ipc.CmdEventEmit:        s.emit,
	}
	for name, fn := range commands {
		r.Handle("/"+name, s.command(name, fn)).Methods(http.MethodPost)
	}
	r.Handle("/"+ipc.CmdHTTPFetchReadBody, http.HandlerFunc(s.httpFetchReadBody)).Methods(http.MethodPost)
	r.HandleFunc(events.ListenPath, s.handleListen).Methods(http.MethodGet)

	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.probes.MarkInitialized()
	s.cfg.Logger.Info(log.Params{"addr": l.Addr().String()}, "host listening")
	return s.httpServer.Serve(l)
}

// ListenAndServe listens on Config.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown fails readiness, closes event streams and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)
	s.cancel()
	s.listener.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Listener returns the host listener.
func (s *Server) Listener() *Listener { return s.listener }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.cfg.Logger.Debug(log.Params{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": r.Header.Get(ipc.RequestIDHeader),
		}, "host request")
		next.ServeHTTP(w, r)
	})
}

// commandFunc handles one command. A nil result is written as JSON null.
type commandFunc func(ctx context.Context, args json.RawMessage) (any, error)

var errUnknownResource = stderrors.New("unknown resource id")

func (s *Server) command(name string, fn commandFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.StartHostSpan(r.Context(), name)
		defer span.End()

		args, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
		var result any
		if err == nil {
			result, err = fn(ctx, args)
		}
		s.observe(name, start, err)

		if err != nil {
			telemetry.RecordError(span, err)
			s.cfg.Logger.Error(log.Params{"command": name}, err, "host command failed")
			writeError(w, err)
			return
		}
		telemetry.RecordSuccess(span)
		writeJSON(w, http.StatusOK, result)
	})
}

func (s *Server) observe(name string, start time.Time, err error) {
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.RecordError("host", err)
	}
	m.HostCommands.WithLabelValues(name, status).Inc()
	m.HostCommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errUnknownResource):
		status = http.StatusNotFound
	case errors.HasCode(err, errors.ErrCodeFetchMalformedBody), errors.HasCode(err, errors.ErrCodeSyncMalformedEvent):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ipc.ErrorBody{Error: err.Error(), Code: string(errors.CodeOf(err))})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.probes.CheckLiveness(r.Context()))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	result := s.probes.CheckReadiness(r.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}
