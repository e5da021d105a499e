package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sessionbridge/internal/config"
	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/host"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the native host",
	Long: `Run the native host that windows attach to.

The host answers the initialize handshake, keeps the client authorization
header, performs frontend API requests for windows and relays auth events
between them. With --db the header (encrypted) and the last client survive
restarts; otherwise state lives in memory.

Endpoints:
  POST /plugin:clerk|<command>   host commands
  POST /plugin:http|<command>    mediated HTTP
  POST /plugin:event|emit        broadcast an event
  GET  /plugin:event|listen      websocket event stream
  GET  /health/live, /health/ready
  GET  /metrics

Example:
  CLERK_PUBLISHABLE_KEY=pk_test_... sessionbridge host --db ~/.sessionbridge/state.db`,
	RunE: runHost,
}

func init() {
	f := hostCmd.Flags()
	f.String("addr", "", "listen address (default 127.0.0.1:8765)")
	f.String("db", "", "sqlite state file; state is kept in memory when empty")
	f.String("passphrase", "", "passphrase encrypting the stored authorization header")
	f.String("publishable-key", "", "publishable key (default $CLERK_PUBLISHABLE_KEY)")
	f.String("proxy-url", "", "frontend API proxy URL")
	f.Duration("shutdown-timeout", 0, "maximum time to drain connections on shutdown")
	f.Bool("metrics", true, "serve prometheus metrics on /metrics")

	rootCmd.AddCommand(hostCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, map[string]string{
		"host.addr":             "addr",
		"host.db":               "db",
		"host.passphrase":       "passphrase",
		"host.publishable_key":  "publishable-key",
		"host.proxy_url":        "proxy-url",
		"host.shutdown_timeout": "shutdown-timeout",
		"host.metrics":          "metrics",
	})
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), "host")
	if cfg.Host.PublishableKey == "" {
		return errors.New(errors.ErrCodeIdentityPublishableKey, "no publishable key configured").
			WithSuggestion("Pass --publishable-key or set " + config.PublishableKeyEnv)
	}

	stopTracing := setupTelemetry(ctx, cfg, logger)
	defer stopTracing()

	store, err := openStore(ctx, cfg.Host)
	if err != nil {
		return err
	}
	defer store.Close()

	reg, m := metrics.NewProcessRegistry()
	hub := events.NewHub(
		events.WithBuffer(cfg.Host.EventBuffer),
		events.WithDropHook(func(name string) { m.HubDropped.WithLabelValues(name).Inc() }),
	)

	loader, err := host.NewLoader(cfg.Host.PublishableKey, store,
		host.WithLoaderProxyURL(cfg.Host.ProxyURL),
		host.WithLoaderLogger(logger),
		host.WithLoaderMetrics(m),
	)
	if err != nil {
		return err
	}

	var gatherer prometheus.Gatherer
	if cfg.Host.Metrics {
		gatherer = reg
	}

	srv, err := host.NewServer(host.Config{
		Addr:            cfg.Host.Addr,
		Loader:          loader,
		Store:           store,
		Hub:             hub,
		Logger:          logger,
		Metrics:         m,
		Gatherer:        gatherer,
		ShutdownTimeout: cfg.Host.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Host.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Host.Addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "host listening on http://%s\n", l.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	select {
	case <-ctx.Done():
		logger.Info(log.Params{}, "shutting down host")
		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openStore(ctx context.Context, cfg config.HostConfig) (host.Store, error) {
	if cfg.DB == "" {
		return host.NewMemoryStore(), nil
	}
	return host.OpenSQLiteStore(ctx, cfg.DB, cfg.Passphrase)
}
