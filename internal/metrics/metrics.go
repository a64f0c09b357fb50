package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditgate_audits_total",
			Help: "Total pipeline submissions by terminal outcome and tier.",
		},
		[]string{"outcome", "tier"},
	)

	QuotaBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditgate_quota_blocks_total",
			Help: "Total admissions blocked by the quota tracker, by reason.",
		},
		[]string{"reason"},
	)

	AnalyzerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditgate_analyzer_duration_seconds",
			Help:    "Analyzer dispatch duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"analyzer"},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditgate_cache_hits_total",
			Help: "Dedup lookups served from the result cache.",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditgate_cache_misses_total",
			Help: "Dedup lookups that required a fresh analysis.",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditgate_cache_evictions_total",
			Help: "Entries evicted from the result cache at capacity.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AuditsTotal,
		QuotaBlocksTotal,
		AnalyzerDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
	)
}
