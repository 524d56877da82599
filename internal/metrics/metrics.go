// Package metrics holds the Prometheus collectors of the cache core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier label values.
const (
	TierMemory  = "memory"
	TierBackend = "backend"
)

var (
	// Cache Service
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magickit_cache_hits_total",
			Help: "Total number of getOrSet calls served from cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magickit_cache_misses_total",
			Help: "Total number of getOrSet calls that invoked the loader",
		},
	)

	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magickit_cache_reads_total",
			Help: "Total number of reads by serving tier and result",
		},
		[]string{"tier", "result"}, // result: "hit", "miss"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magickit_cache_memory_entries",
			Help: "Current number of in-process entries",
		},
	)

	CacheMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magickit_cache_memory_bytes",
			Help: "Approximate size of in-process entries in bytes",
		},
	)

	CacheSweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magickit_cache_sweep_removed_total",
			Help: "Total number of expired entries removed by the periodic sweep",
		},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magickit_cache_invalidations_total",
			Help: "Total number of invalidation events by kind",
		},
		[]string{"kind"},
	)

	// External backend
	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magickit_cache_backend_errors_total",
			Help: "Total number of external backend failures absorbed by the cache",
		},
		[]string{"op"},
	)

	BackendConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magickit_cache_backend_connected",
			Help: "Whether the external backend is reachable (1) or not (0)",
		},
	)

	BackendBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "magickit_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Performance monitor
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magickit_request_duration_seconds",
			Help:    "Monitored operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "cache_hit"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "magickit_active_requests",
			Help: "Current number of started but not ended timings",
		},
	)

	SampleWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "magickit_metric_sample_write_errors_total",
			Help: "Total number of performance samples that could not be persisted",
		},
	)

	// CDN
	CDNPurges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magickit_cdn_purge_requests_total",
			Help: "Total number of CDN purge requests by result",
		},
		[]string{"result"}, // "success", "failure", "mocked"
	)
)
