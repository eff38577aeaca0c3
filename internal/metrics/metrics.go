// Package metrics exposes runtimelog counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests and one-shot CLI commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	appended     prometheus.Counter
	evicted      *prometheus.CounterVec
	migrated     prometheus.Counter
	dispatched   prometheus.Counter
	deduplicated *prometheus.CounterVec
	sideEffects  *prometheus.CounterVec
	storageFails *prometheus.CounterVec
}

// New creates the counters on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runtimelog_entries_appended_total",
			Help: "Log entries appended to the log store.",
		}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runtimelog_entries_evicted_total",
			Help: "Log entries dropped by retention, by reason (age, count).",
		}, []string{"reason"}),
		migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runtimelog_entries_migrated_total",
			Help: "Legacy log entries rewritten on read.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runtimelog_events_dispatched_total",
			Help: "Log events that passed deduplication.",
		}),
		deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runtimelog_events_deduplicated_total",
			Help: "Log events dropped as duplicates, by kind (tick, manual).",
		}, []string{"kind"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runtimelog_side_effect_failures_total",
			Help: "Dispatcher side effects that failed, by effect.",
		}, []string{"effect"}),
		storageFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runtimelog_storage_failures_total",
			Help: "Key/value backend operations that failed and were swallowed, by op.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.appended, m.evicted, m.migrated, m.dispatched,
		m.deduplicated, m.sideEffects, m.storageFails,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) EntryAppended() {
	if m == nil {
		return
	}
	m.appended.Inc()
}

func (m *Metrics) EntriesEvicted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) EntriesMigrated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.migrated.Add(float64(n))
}

func (m *Metrics) EventDispatched() {
	if m == nil {
		return
	}
	m.dispatched.Inc()
}

func (m *Metrics) EventDeduplicated(kind string) {
	if m == nil {
		return
	}
	m.deduplicated.WithLabelValues(kind).Inc()
}

func (m *Metrics) SideEffectFailed(effect string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(effect).Inc()
}

func (m *Metrics) StorageFailed(op string) {
	if m == nil {
		return
	}
	m.storageFails.WithLabelValues(op).Inc()
}
