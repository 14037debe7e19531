package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyrefactor_cache_lookups_total",
		Help: "Cache lookups by tier and outcome.",
	}, []string{"tier", "outcome"})

	CacheWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustyrefactor_cache_writes_total",
		Help: "Total number of entries written to the disk tier.",
	})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyrefactor_cache_evictions_total",
		Help: "Entries removed from the cache, labelled by reason.",
	}, []string{"reason"})

	CacheSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustyrefactor_cache_size_bytes",
		Help: "Bytes currently accounted to the disk tier.",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustyrefactor_cache_entries",
		Help: "Number of indexed entries in the disk tier.",
	})

	HotTierEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustyrefactor_hot_tier_entries",
		Help: "Number of decoded payloads held in memory.",
	})

	CompressionRatio = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rustyrefactor_compression_ratio",
		Help:    "Stored size divided by raw payload size.",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5},
	}, []string{"codec"})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rustyrefactor_resolution_seconds",
		Help:    "Time spent resolving the importable universe of a project.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	ImportableItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rustyrefactor_importable_items",
		Help: "Items in the most recent resolution, by origin.",
	}, []string{"origin"})

	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rustyrefactor_parsing_seconds",
		Help:    "Time spent parsing a Rust source file.",
		Buckets: prometheus.DefBuckets,
	})

	ExtractedFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyrefactor_extracted_files_total",
		Help: "Rust source files visited by local item extraction, by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustyrefactor_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyrefactor_watcher_invalidations_total",
		Help: "Cache invalidations triggered by file system events.",
	}, []string{"scope"})
)
