// Package metrics exposes Prometheus collectors for archive crawls.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results recorded by ObserveFetch.
const (
	FetchOK        = "ok"
	FetchHTTPError = "http_error"
	FetchConnError = "conn_error"
	FetchInvalid   = "invalid"
)

// Record outcomes recorded by ObserveRecord.
const (
	RecordAppended = "appended"
	RecordDropped  = "dropped"
)

var (
	fetchesTotal     *prometheus.CounterVec
	fetchBytesTotal  *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	locatorsTotal    *prometheus.CounterVec
	recordsTotal     *prometheus.CounterVec
	daysTotal        *prometheus.CounterVec
	lastCompletedDay *prometheus.GaugeVec
	runsTotal        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rateLimitDelay   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_fetches_total",
				Help: "Total number of fetches, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_crawler_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"site"},
		)

		locatorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_locators_total",
				Help: "Locators scheduled for fetching, labeled by source and kind (archive/article).",
			},
			[]string{"source", "kind"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_records_total",
				Help: "Extracted records, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		daysTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_days_total",
				Help: "Crawl days fully appended, labeled by source.",
			},
			[]string{"source"},
		)

		lastCompletedDay = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "archive_crawler_last_completed_day_timestamp_seconds",
				Help: "Unix time of the last crawl day fully appended, labeled by source.",
			},
			[]string{"source"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_runs_total",
				Help: "Crawl runs finished, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		httpRequests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawler_http_requests_total",
				Help: "Status server requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_crawler_http_request_duration_seconds",
				Help:    "Status server latencies, labeled by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		rateLimitDelay = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_crawler_rate_limit_delay_seconds",
				Help:    "Time fetches waited on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch of locator.
func ObserveFetch(locator, result string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(locator)
	fetchesTotal.WithLabelValues(site, result).Inc()
	fetchDuration.WithLabelValues(site).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveLocators records how many locators of kind were scheduled.
func ObserveLocators(source, kind string, n int) {
	Init()
	if n > 0 {
		locatorsTotal.WithLabelValues(source, kind).Add(float64(n))
	}
}

// ObserveRecord counts one record outcome.
func ObserveRecord(source, outcome string) {
	Init()
	recordsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveDay marks day as fully appended for source.
func ObserveDay(source string, day time.Time) {
	Init()
	daysTotal.WithLabelValues(source).Inc()
	lastCompletedDay.WithLabelValues(source).Set(float64(day.Unix()))
}

// ObserveRun counts a finished run.
func ObserveRun(source, status string) {
	Init()
	runsTotal.WithLabelValues(source, status).Inc()
}

// ObserveHTTPRequest records one status server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a fetch of site waited for a token.
func ObserveRateLimitDelay(site string, waited time.Duration) {
	Init()
	rateLimitDelay.WithLabelValues(site).Observe(waited.Seconds())
}
