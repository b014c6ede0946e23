// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerFetchesTotal        *prometheus.CounterVec
	crawlerItemsTotal          *prometheus.CounterVec
	crawlerItemFailuresTotal   prometheus.Counter
	crawlerRunsTotal           *prometheus.CounterVec
	crawlerActiveItems         prometheus.Gauge
	detectorChangesTotal       *prometheus.CounterVec
	detectorAlertsTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of page fetches, labeled by kind (listing, detail) and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		crawlerItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_items_total",
				Help: "Total number of items processed, labeled by result (created, updated, unchanged).",
			},
			[]string{"result"},
		)

		crawlerItemFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_item_failures_total",
				Help: "Total number of items that exhausted all retry attempts.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by status (completed, failed).",
			},
			[]string{"status"},
		)

		crawlerActiveItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_items",
				Help: "Number of item fetches currently in flight.",
			},
		)

		detectorChangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detector_changes_total",
				Help: "Total number of content changes detected, labeled by significance.",
			},
			[]string{"significant"},
		)

		detectorAlertsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "detector_alerts_total",
				Help: "Total number of change alerts dispatched.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counter for the given page kind and outcome.
func ObserveFetch(kind, outcome string) {
	crawlerFetchesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveItem increments the item counter for the given storage result.
func ObserveItem(result string) {
	crawlerItemsTotal.WithLabelValues(result).Inc()
}

// ObserveItemFailure increments the exhausted-retries counter.
func ObserveItemFailure() {
	crawlerItemFailuresTotal.Inc()
}

// ObserveRun increments the crawl run counter for the given status.
func ObserveRun(status string) {
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// IncActiveItems increments the in-flight item gauge.
func IncActiveItems() {
	crawlerActiveItems.Inc()
}

// DecActiveItems decrements the in-flight item gauge.
func DecActiveItems() {
	crawlerActiveItems.Dec()
}

// ObserveChange increments the detected change counter.
func ObserveChange(significant bool) {
	detectorChangesTotal.WithLabelValues(strconv.FormatBool(significant)).Inc()
}

// ObserveAlert increments the dispatched alert counter.
func ObserveAlert() {
	detectorAlertsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
