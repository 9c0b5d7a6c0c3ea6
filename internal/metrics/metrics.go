// Package metrics exposes Prometheus counters for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pvbridge"

// Metrics holds the bridge collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	definitionsRegistered prometheus.Counter
	bindingsCreated       *prometheus.CounterVec
	bindingFailures       prometheus.Counter
	fetches               prometheus.Counter
	commits               *prometheus.CounterVec
	effectiveChanges      prometheus.Counter
	deletions             prometheus.Counter
	boundObjects          prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		definitionsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "definitions_registered_total",
			Help:      "Number of type definitions registered with the form subsystem.",
		}),
		bindingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bindings_created_total",
			Help:      "Number of native objects bound to a mirror proxy, by group.",
		}, []string{"group"}),
		bindingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_failures_total",
			Help:      "Number of bindings rolled back after a failure.",
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Number of native to mirror value copies.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of mirror to native commits, by outcome.",
		}, []string{"outcome"}),
		effectiveChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effective_changes_total",
			Help:      "Number of element or proxy slots changed by commits.",
		}),
		deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "Number of native objects deleted through the bridge.",
		}),
		boundObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bound_objects",
			Help:      "Number of native objects currently bound.",
		}),
	}
	m.registry.MustRegister(
		m.definitionsRegistered,
		m.bindingsCreated,
		m.bindingFailures,
		m.fetches,
		m.commits,
		m.effectiveChanges,
		m.deletions,
		m.boundObjects,
	)
	return m
}

// Registry returns the registry the collectors live on, for promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DefinitionRegistered() {
	if m == nil {
		return
	}
	m.definitionsRegistered.Inc()
}

func (m *Metrics) BindingCreated(group string) {
	if m == nil {
		return
	}
	m.bindingsCreated.WithLabelValues(group).Inc()
	m.boundObjects.Inc()
}

func (m *Metrics) BindingFailed() {
	if m == nil {
		return
	}
	m.bindingFailures.Inc()
}

func (m *Metrics) Fetched() {
	if m == nil {
		return
	}
	m.fetches.Inc()
}

// Committed records one commit. Commits with no effective change are
// counted as "noop".
func (m *Metrics) Committed(changes int) {
	if m == nil {
		return
	}
	if changes == 0 {
		m.commits.WithLabelValues("noop").Inc()
		return
	}
	m.commits.WithLabelValues("applied").Inc()
	m.effectiveChanges.Add(float64(changes))
}

func (m *Metrics) CommitFailed() {
	if m == nil {
		return
	}
	m.commits.WithLabelValues("failed").Inc()
}

// Deleted records a deletion that unbound n objects.
func (m *Metrics) Deleted(unbound int) {
	if m == nil {
		return
	}
	m.deletions.Inc()
	m.boundObjects.Sub(float64(unbound))
}
