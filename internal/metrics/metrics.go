// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inputguard"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	gateRejects        *prometheus.CounterVec
	dispatches         *prometheus.CounterVec
	dispatchDuration   prometheus.Histogram
	dropped            *prometheus.CounterVec
	overlayTransitions *prometheus.CounterVec
	overlayDrops       *prometheus.CounterVec
	remediations       *prometheus.CounterVec
	watchdogHeals      *prometheus.CounterVec
	activities         prometheus.Gauge
}

// New creates the collectors on a private registry.
func New(version, commit string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.gateRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejects_total",
			Help:      "Input fragments rejected by the gate",
		},
		[]string{"reason"},
	)
	m.dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Classification dispatches by outcome",
		},
		[]string{"outcome"},
	)
	m.dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Classification dispatch duration",
			Buckets:   prometheus.DefBuckets,
		},
	)
	m.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped before dispatch",
		},
		[]string{"reason"},
	)
	m.overlayTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_transitions_total",
			Help:      "Overlay state machine transitions",
		},
		[]string{"from", "to"},
	)
	m.overlayDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_drops_total",
			Help:      "Overlay present requests dropped",
		},
		[]string{"reason"},
	)
	m.remediations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remediations_total",
			Help:      "Input clearing chains by winning strategy",
		},
		[]string{"strategy"},
	)
	m.watchdogHeals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_heals_total",
			Help:      "Self-healing actions taken by the watchdogs",
		},
		[]string{"kind"},
	)
	m.activities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activity_log_entries",
			Help:      "Entries currently held by the activity log",
		},
	)
	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit"},
	)

	m.registry.MustRegister(
		m.gateRejects,
		m.dispatches,
		m.dispatchDuration,
		m.dropped,
		m.overlayTransitions,
		m.overlayDrops,
		m.remediations,
		m.watchdogHeals,
		m.activities,
		info,
	)
	info.WithLabelValues(version, commit).Set(1)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) GateRejected(reason string) {
	if m == nil {
		return
	}
	m.gateRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) Dispatched(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
	m.dispatchDuration.Observe(seconds)
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) OverlayTransition(from, to string) {
	if m == nil {
		return
	}
	m.overlayTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) OverlayDropped(reason string) {
	if m == nil {
		return
	}
	m.overlayDrops.WithLabelValues(reason).Inc()
}

// Remediated records a clearing chain; strategy is "none" on a miss.
func (m *Metrics) Remediated(strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.remediations.WithLabelValues(strategy).Inc()
}

func (m *Metrics) WatchdogHealed(kind string) {
	if m == nil {
		return
	}
	m.watchdogHeals.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetActivities(n int) {
	if m == nil {
		return
	}
	m.activities.Set(float64(n))
}
