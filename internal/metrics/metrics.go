// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysisTotal counts engine operations by outcome
	analysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spmanalyzer_analysis_total",
		Help: "Total analyses by operation and result",
	}, []string{"operation", "result"})

	// analysisDuration tracks engine latency
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spmanalyzer_analysis_duration_seconds",
		Help:    "Analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	}, []string{"operation"})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spmanalyzer_session_cache_hits_total",
		Help: "Session file cache hits",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spmanalyzer_session_cache_misses_total",
		Help: "Session file cache misses",
	}, []string{"kind"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spmanalyzer_session_cache_evictions_total",
		Help: "Files dropped from a session cache to stay within its size",
	}, []string{"kind"})

	sessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spmanalyzer_sessions_open",
		Help: "Number of open experiment sessions",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spmanalyzer_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spmanalyzer_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// ObserveAnalysis records one engine call that started at start.
func ObserveAnalysis(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	analysisTotal.WithLabelValues(operation, result).Inc()
	analysisDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// CacheHit records a cache hit for files of kind.
func CacheHit(kind string) { cacheHits.WithLabelValues(kind).Inc() }

// CacheMiss records a cache miss for files of kind.
func CacheMiss(kind string) { cacheMisses.WithLabelValues(kind).Inc() }

// CacheEviction records an LRU eviction for files of kind.
func CacheEviction(kind string) { cacheEvictions.WithLabelValues(kind).Inc() }

// SessionOpened and SessionClosed track the open session gauge.
func SessionOpened() { sessionsOpen.Inc() }

func SessionClosed() { sessionsOpen.Dec() }

// ObserveHTTP records a served request.
func ObserveHTTP(route, method string, status int, d time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
