// Package factmetrics implements the Metrics Hooks: timed
// operation spans and gauges tagged by projection class and, where
// applicable, lock state. Metric emission must never alter control flow —
// every exported method on Hooks is infallible.
package factmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hooks is the sampling surface factengine calls into. Every method is a
// no-op on a nil *Hooks; factengine.New substitutes NoOp() for nil.
type Hooks struct {
	updateDuration *prometheus.HistogramVec
	fetchDuration  *prometheus.HistogramVec
	findDuration   *prometheus.HistogramVec
	eventLatency   *prometheus.HistogramVec
	fetchSize      *prometheus.GaugeVec
	registry       *prometheus.Registry
}

// New registers the runtime's metric families under namespace (empty means
// no namespace prefix) against reg, and returns the Hooks used to sample
// them. Registering the same namespace twice against the same Registry
// panics, matching promauto's own behavior — callers share one Hooks per
// process.
func New(namespace string, reg *prometheus.Registry) *Hooks {
	factory := prometheus.WrapRegistererWithPrefix("", reg)
	h := &Hooks{registry: reg}

	h.updateDuration = registerHistogram(factory, namespace, "managed_projection_update_duration_seconds",
		"Time spent in ManagedProjection update (catchup under write lock).", []string{"class", "locked"})
	h.fetchDuration = registerHistogram(factory, namespace, "fetch_duration_seconds",
		"Time spent in SnapshotProjection fetch.", []string{"class"})
	h.findDuration = registerHistogram(factory, namespace, "find_duration_seconds",
		"Time spent in Aggregate find.", []string{"class"})
	h.eventLatency = registerHistogram(factory, namespace, "event_processing_latency_seconds",
		"Age of a fact, from its _ts header to the moment a follow subscription applied it.", []string{"class"})
	h.fetchSize = registerGauge(factory, namespace, "fetch_size_bytes",
		"Size in bytes of the most recently loaded snapshot.", []string{"class"})

	return h
}

func registerHistogram(factory prometheus.Registerer, namespace, name, help string, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	factory.MustRegister(vec)
	return vec
}

func registerGauge(factory prometheus.Registerer, namespace, name, help string, labels []string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	factory.MustRegister(vec)
	return vec
}

// NoOp returns Hooks whose metric families are registered against a
// private registry, so callers that don't want process-wide metrics (unit
// tests, mostly) can still get a valid, infallible Hooks.
func NoOp() *Hooks {
	return New("", prometheus.NewRegistry())
}

// Registry returns the registry h's metric families were registered
// against, for an embedding application to expose however it serves its
// own metrics endpoint (e.g. promhttp.HandlerFor).
func (h *Hooks) Registry() *prometheus.Registry {
	if h == nil {
		return nil
	}
	return h.registry
}

// ObserveUpdateDuration records a ManagedProjection.update span for class.
// locked reports whether the call happened inside a withLockOn closure
// (see factlock.InLock), so an application can separate the cost of a
// plain subscription-driven update from one nested inside an optimistic
// publish retry loop.
func (h *Hooks) ObserveUpdateDuration(class string, locked bool, d time.Duration) {
	if h == nil {
		return
	}
	h.updateDuration.WithLabelValues(class, strconv.FormatBool(locked)).Observe(d.Seconds())
}

// ObserveFetchDuration records a SnapshotProjection.fetch span for class.
func (h *Hooks) ObserveFetchDuration(class string, d time.Duration) {
	if h == nil {
		return
	}
	h.fetchDuration.WithLabelValues(class).Observe(d.Seconds())
}

// ObserveFindDuration records an Aggregate.find span for class.
func (h *Hooks) ObserveFindDuration(class string, d time.Duration) {
	if h == nil {
		return
	}
	h.findDuration.WithLabelValues(class).Observe(d.Seconds())
}

// ObserveEventLatency records how old a fact was, relative to its _ts
// header, at the moment a follow subscription applied it.
func (h *Hooks) ObserveEventLatency(class string, age time.Duration) {
	if h == nil || age < 0 {
		return
	}
	h.eventLatency.WithLabelValues(class).Observe(age.Seconds())
}

// SetFetchSize records the byte size of the most recently loaded snapshot
// for class.
func (h *Hooks) SetFetchSize(class string, bytes int) {
	if h == nil {
		return
	}
	h.fetchSize.WithLabelValues(class).Set(float64(bytes))
}
