package metrics

import (
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"FetchRoutes", m.FetchRoutes},
		{"SyncEvents", m.SyncEvents},
		{"HostCommands", m.HostCommands},
		{"HostCommandDuration", m.HostCommandDuration},
		{"HubPublished", m.HubPublished},
		{"HubDropped", m.HubDropped},
		{"HubSubscribers", m.HubSubscribers},
		{"StoreWrites", m.StoreWrites},
		{"LoaderFetches", m.LoaderFetches},
		{"Errors", m.Errors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("metric %s is nil", tt.name)
			}
		})
	}
}

func TestObserveHelpers(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveRoute("mediated")
	m.ObserveRoute("mediated")
	m.ObserveSync("reconciled")

	if got := testutil.ToFloat64(m.FetchRoutes.WithLabelValues("mediated")); got != 2 {
		t.Errorf("mediated routes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SyncEvents.WithLabelValues("reconciled")); got != 1 {
		t.Errorf("reconciled events = %v, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	_, m := NewRegistry()

	m.RecordError("bootstrap", errors.New(errors.ErrCodeHostHandshake, "x"))
	m.RecordError("bootstrap", stderrors.New("plain"))
	m.RecordError("bootstrap", nil)

	if got := testutil.ToFloat64(m.Errors.WithLabelValues("HOST-001", "bootstrap")); got != 1 {
		t.Errorf("HOST-001 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("unknown", "bootstrap")); got != 1 {
		t.Errorf("unknown = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRoute("direct")
	m.ObserveSync("self")
	m.RecordError("x", stderrors.New("y"))
}
