package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReservation("created")
	m.ObserveReservation("conflict")
	m.ObserveReservation("conflict")
	m.ObserveAvailability("smart", true, 0.01)
	m.ObserveEvent("log", "delivered")
	m.ScorerDegraded()

	if got := testutil.ToFloat64(m.reservationsTotal.WithLabelValues("conflict")); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.availabilityTotal.WithLabelValues("smart", "hit")); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.scorerDegraded); got != 1 {
		t.Fatalf("expected 1 degraded, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAvailability("simple", false, 0.1)
	m.ObserveReservation("created")
	m.ObserveTransition("status", "ok")
	m.ScorerDegraded()
	m.ObserveEvent("kafka", "failed")
	m.ObserveConsumed("duplicate")
}
