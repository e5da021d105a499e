package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProviderDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitProvider(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(ctx))
}

func TestInitProviderEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "collector.example.com:4318"
	cfg.SampleRate = 0.5

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, _ = InitProvider(ctx, DefaultConfig())
}

func TestShutdownWithoutProvider(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(2).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
