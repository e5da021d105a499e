package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistryIsolated(t *testing.T) {
	reg1, m1 := NewRegistry()
	_, m2 := NewRegistry()

	m1.ObserveSync("emitted")

	if got := testutil.ToFloat64(m2.SyncEvents.WithLabelValues("emitted")); got != 0 {
		t.Errorf("second registry saw %v events, want 0", got)
	}
	if n, err := testutil.GatherAndCount(reg1, "sessionbridge_sync_events_total"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v; want 1, nil", n, err)
	}
}

func TestNewProcessRegistry(t *testing.T) {
	reg, m := NewProcessRegistry()
	m.ObserveRoute("direct")

	n, err := testutil.GatherAndCount(reg, "go_goroutines")
	if err != nil || n != 1 {
		t.Errorf("go_goroutines count = %d, %v; want 1, nil", n, err)
	}
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveRoute("mediated")

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `sessionbridge_fetch_routes_total{route="mediated"} 1`) {
		t.Errorf("route counter missing from:\n%s", rec.Body.String())
	}
}
