package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "importcheck_parsing_seconds",
		Help:    "Time spent parsing and extracting a source file.",
		Buckets: prometheus.DefBuckets,
	})

	FilesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importcheck_files_indexed_total",
		Help: "Total number of files added to a project index.",
	})

	ParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importcheck_parse_failures_total",
		Help: "Total number of files skipped because they could not be read or parsed.",
	})

	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importcheck_issues_total",
		Help: "Total number of import issues reported, by kind.",
	}, []string{"kind"})

	ProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importcheck_provider_calls_total",
		Help: "External module provider lookups, by provider and status.",
	}, []string{"provider", "status"})

	ProviderCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importcheck_provider_cache_hits_total",
		Help: "External module lookups answered from the cache.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "importcheck_analysis_seconds",
		Help:    "Time spent per analysis phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "importcheck_index_files",
		Help: "Number of files in the most recent project index.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importcheck_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
