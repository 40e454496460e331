package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SummariesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summaries_computed_total",
		Help: "Total number of summaries computed from source data (cache misses included).",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summary_cache_hits_total",
		Help: "Total number of summary cache hits.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summary_cache_misses_total",
		Help: "Total number of summary cache misses.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summary_cache_evictions_total",
		Help: "Total number of cache entries evicted under the LRU bound.",
	})

	CacheExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summary_cache_expirations_total",
		Help: "Total number of cache entries dropped after exceeding their TTL.",
	})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_summary_cache_invalidations_total",
		Help: "Total number of cache entries removed by dependency-scoped invalidation.",
	})

	Relationships = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tally_relationships",
		Help: "Current number of relationships in the graph.",
	})

	CycleRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_cycle_rejections_total",
		Help: "Total number of relationship insertions rejected for closing a cycle.",
	})

	DepthTruncations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_depth_truncations_total",
		Help: "Total number of aggregation branches truncated at the max cascade depth.",
	})

	FallbackComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_fallback_computations_total",
		Help: "Total number of summaries answered by the non-relationship fallback path.",
	})

	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_update_duration_ms",
		Help:    "End-to-end update propagation latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	BatchItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_batch_items",
		Help:    "Number of items recomputed per batch update.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)
