package graph

import (
	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics holds Prometheus metrics for graph builds and cache lookups.
// They are always created; registering them is optional.
type cacheMetrics struct {
	builds      prometheus.Counter
	buildErrors prometheus.Counter
	buildTime   prometheus.Histogram
	hits        prometheus.Counter
	misses      prometheus.Counter
	entries     prometheus.Gauge
}

func newCacheMetrics() *cacheMetrics {
	return &cacheMetrics{
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "builds_total",
			Help:      "Total number of relationship graph builds",
		}),
		buildErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "build_errors_total",
			Help:      "Total number of failed relationship graph builds",
		}),
		buildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "build_seconds",
			Help:      "Relationship graph build duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "cache_hits_total",
			Help:      "Total number of graph cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "cache_misses_total",
			Help:      "Total number of graph cache misses",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contentgraph",
			Subsystem: "graph",
			Name:      "entries",
			Help:      "Number of entries in the most recently built graph",
		}),
	}
}

func (m *cacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.builds, m.buildErrors, m.buildTime, m.hits, m.misses, m.entries}
}
