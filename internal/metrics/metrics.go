// Package metrics exposes the Prometheus instrumentation surface the
// Coordinator and MetadataCache publish through (SPEC_FULL.md §4.9a),
// grounded on the teacher's direct dependency on
// github.com/prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metrics the core publishes. A Registry created via
// New is safe to use (a zero-value Registry is not: its metric fields are
// nil); a nil *Registry is also safe (all
// methods are no-ops), so components can be constructed without metrics
// wired in tests.
type Registry struct {
	CacheOps      *prometheus.CounterVec
	JobsStarted   *prometheus.CounterVec
	JobsActive    prometheus.Gauge
	RedrawLatency prometheus.Histogram
}

// New creates and registers a Registry against reg. Pass
// prometheus.NewRegistry() in production, or nil to get an unregistered
// (but still functional) Registry for tests.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfm",
			Subsystem: "cache",
			Name:      "ops_total",
			Help:      "MetadataCache operations by result.",
		}, []string{"op", "scheme", "result"}),
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfm",
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "JobRunner tasks started by kind.",
		}, []string{"kind"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tfm",
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Currently running JobRunner tasks.",
		}),
		RedrawLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tfm",
			Subsystem: "coordinator",
			Name:      "redraw_seconds",
			Help:      "Time spent producing one redraw.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(r.CacheOps, r.JobsStarted, r.JobsActive, r.RedrawLatency)
	}
	return r
}

// CacheHit records a cache hit for op/scheme. Safe to call on a nil Registry.
func (r *Registry) CacheHit(op, scheme string) {
	if r == nil {
		return
	}
	r.CacheOps.WithLabelValues(op, scheme, "hit").Inc()
}

// CacheMiss records a cache miss for op/scheme. Safe to call on a nil Registry.
func (r *Registry) CacheMiss(op, scheme string) {
	if r == nil {
		return
	}
	r.CacheOps.WithLabelValues(op, scheme, "miss").Inc()
}

// JobStarted records a started job of the given kind. Safe to call on a
// nil Registry.
func (r *Registry) JobStarted(kind string) {
	if r == nil {
		return
	}
	r.JobsStarted.WithLabelValues(kind).Inc()
	r.JobsActive.Inc()
}

// JobFinished decrements the active-job gauge. Safe to call on a nil Registry.
func (r *Registry) JobFinished() {
	if r == nil {
		return
	}
	r.JobsActive.Dec()
}

// ObserveRedraw records how long a redraw took. Safe to call on a nil Registry.
func (r *Registry) ObserveRedraw(seconds float64) {
	if r == nil {
		return
	}
	r.RedrawLatency.Observe(seconds)
}
