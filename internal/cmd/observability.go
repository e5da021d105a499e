package cmd

import (
	"context"
	"time"

	"github.com/felixgeelhaar/sessionbridge/internal/config"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/telemetry"
	"github.com/felixgeelhaar/sessionbridge/internal/version"
)

// setupTelemetry installs the tracer provider cfg selects. The returned
// function flushes and stops it.
func setupTelemetry(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version.GetInfo().Version
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.Endpoint = cfg.Telemetry.Endpoint
	tcfg.Insecure = cfg.Telemetry.Insecure
	tcfg.SampleRate = cfg.Telemetry.SampleRate
	if cfg.Telemetry.Environment != "" {
		tcfg.Environment = cfg.Telemetry.Environment
	}

	shutdown, err := telemetry.InitProvider(ctx, tcfg)
	if err != nil {
		logger.Warn(log.Params{"error": err.Error()}, "tracing disabled")
		return func() {}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn(log.Params{"error": err.Error()}, "failed to flush traces")
		}
	}
}
