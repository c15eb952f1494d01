package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ShowAttempt("shown")
	m.Hidden()
	m.ClickOutside("dismiss")
	m.FocusChanged()
	m.WindowRegistered(1)
	m.WindowUnregistered(0)
	m.Recovered("orphan")
}

func TestMetrics_CountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	m.ShowAttempt("shown")
	m.ShowAttempt("shown")
	m.ShowAttempt("blocked")
	m.WindowRegistered(3)

	if got := testutil.ToFloat64(m.shows.WithLabelValues("shown")); got != 2 {
		t.Fatalf("shown = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.shows.WithLabelValues("blocked")); got != 1 {
		t.Fatalf("blocked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.registered); got != 3 {
		t.Fatalf("registered = %v, want 3", got)
	}
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first new: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
