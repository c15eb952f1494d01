// Package metrics exposes coordinator counters to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "palettehost"

// Metrics holds the coordinator's collectors.
type Metrics struct {
	shows        *prometheus.CounterVec
	hides        prometheus.Counter
	clicks       *prometheus.CounterVec
	focusChanges prometheus.Counter
	registered   prometheus.Gauge
	recoveries   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		shows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "palette_shows_total",
			Help:      "Palette show attempts by result (shown, blocked, refused, error).",
		}, []string{"result"}),
		hides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "palette_hides_total",
			Help:      "Palettes hidden.",
		}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_outside_total",
			Help:      "Click-outside reports by outcome.",
		}, []string{"outcome"}),
		focusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_changes_total",
			Help:      "Transitions of the focused entity.",
		}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_windows",
			Help:      "Windows currently registered with the input router.",
		}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_windows_total",
			Help:      "Native windows processed by recovery, by outcome (synced, orphan).",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.shows, m.hides, m.clicks, m.focusChanges, m.registered, m.recoveries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ShowAttempt counts a show by result.
func (m *Metrics) ShowAttempt(result string) {
	if m == nil {
		return
	}
	m.shows.WithLabelValues(result).Inc()
}

// Hidden counts a completed hide.
func (m *Metrics) Hidden() {
	if m == nil {
		return
	}
	m.hides.Inc()
}

// ClickOutside counts a click-outside report by outcome.
func (m *Metrics) ClickOutside(outcome string) {
	if m == nil {
		return
	}
	m.clicks.WithLabelValues(outcome).Inc()
}

// FocusChanged counts a focus transition.
func (m *Metrics) FocusChanged() {
	if m == nil {
		return
	}
	m.focusChanges.Inc()
}

// WindowRegistered records the registered window count after a registration.
func (m *Metrics) WindowRegistered(n int) {
	if m == nil {
		return
	}
	m.registered.Set(float64(n))
}

// WindowUnregistered records the registered window count after a removal.
func (m *Metrics) WindowUnregistered(n int) {
	if m == nil {
		return
	}
	m.registered.Set(float64(n))
}

// Recovered counts a window handled by recovery.
func (m *Metrics) Recovered(outcome string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(outcome).Inc()
}
