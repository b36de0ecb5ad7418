package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveCommandAndHandler(t *testing.T) {
	m := New("lancebridge_test", func() float64 { return 3 })

	m.ObserveCommand("Connect", 12*time.Millisecond, true)
	m.ObserveCommand("Query", 5*time.Millisecond, false)
	m.ObserveBatchEmitted("Query")
	m.ObserveVendorError("CreateTable")
	m.SetLiveConnections(2)
	m.SetLiveTables(5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"lancebridge_test_commands_total",
		"lancebridge_test_command_errors_total",
		"lancebridge_test_queue_depth 3",
		"lancebridge_test_live_connections 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("Connect", time.Millisecond, true)
	m.ObserveBatchEmitted("Query")
	m.ObserveVendorError("x")
	m.SetLiveConnections(1)
	m.SetLiveTables(1)
}
