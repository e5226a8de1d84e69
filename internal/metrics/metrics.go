// Package metrics provides Prometheus metrics for the institution matcher.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolve calls by recommendation tier of the best match
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "resolve",
			Name:      "resolutions_total",
			Help:      "Total number of resolutions by best-match recommendation",
		},
		[]string{"recommendation"},
	)

	// ResolveDuration tracks end-to-end resolve latency
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "resolve",
			Name:      "duration_seconds",
			Help:      "Duration of resolve calls in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesRetrieved tracks the size of the pre-filtered candidate list
	CandidatesRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Number of candidates returned by retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// RuleReloadsTotal tracks rule snapshot reloads by outcome (ok, stale, failed)
	RuleReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "rules",
			Name:      "reloads_total",
			Help:      "Total number of normalization rule reloads by outcome",
		},
		[]string{"outcome"},
	)

	// AuditWritesTotal tracks validation log writes by sink and status
	AuditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Total number of validation log writes by sink and status",
		},
		[]string{"sink", "status"},
	)

	// SearchCacheTotal tracks search cache lookups by layer and result
	SearchCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "search_cache",
			Name:      "lookups_total",
			Help:      "Total number of search cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)

	// GroupingRunsTotal tracks grouping runs by status
	GroupingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "grouping",
			Name:      "runs_total",
			Help:      "Total number of grouping runs by status",
		},
		[]string{"status"},
	)

	// MetricsRollupsTotal tracks daily metrics rollups by status
	MetricsRollupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "stats",
			Name:      "rollups_total",
			Help:      "Total number of daily metrics rollups by status",
		},
		[]string{"status"},
	)

	// BatchRowsTotal tracks batch job rows by outcome (ok, failed)
	BatchRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "batch",
			Name:      "rows_total",
			Help:      "Total number of batch rows processed by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequestsTotal tracks HTTP requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks HTTP latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
