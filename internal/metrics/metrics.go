// Package metrics provides Prometheus metrics for the price watch service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionCyclesTotal tracks ingestion cycles by trigger and outcome
	IngestionCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "ingestion",
			Name:      "cycles_total",
			Help:      "Total number of ingestion cycles by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// IngestionProductsTotal tracks per-product outcomes
	IngestionProductsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "ingestion",
			Name:      "products_total",
			Help:      "Total number of products processed by outcome",
		},
		[]string{"outcome"},
	)

	// IngestionCycleDuration tracks cycle duration in seconds
	IngestionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Subsystem: "ingestion",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of ingestion cycles in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// IngestionCycleInProgress is 1 while a cycle runs
	IngestionCycleInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricewatch",
			Subsystem: "ingestion",
			Name:      "cycle_in_progress",
			Help:      "Whether an ingestion cycle is currently running",
		},
	)

	// UpstreamRequestsTotal tracks marketplace requests
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "marketplace",
			Name:      "requests_total",
			Help:      "Total number of outbound marketplace requests",
		},
		[]string{"marketplace", "status_code"},
	)

	// UpstreamRequestDuration tracks marketplace request duration
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Subsystem: "marketplace",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound marketplace requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"marketplace"},
	)

	// ComparatorQuotesGenerated tracks generated store quotes
	ComparatorQuotesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "comparator",
			Name:      "quotes_generated_total",
			Help:      "Total number of store quotes generated",
		},
		[]string{"store_id", "in_stock"},
	)

	// HTTPRequestsTotal tracks served requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricewatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks request latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricewatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordCycle records a finished ingestion cycle
func RecordCycle(trigger, status string, durationSeconds float64) {
	IngestionCyclesTotal.WithLabelValues(trigger, status).Inc()
	IngestionCycleDuration.Observe(durationSeconds)
}

// RecordProduct records one product outcome within a cycle
func RecordProduct(outcome string) {
	IngestionProductsTotal.WithLabelValues(outcome).Inc()
}

// SetCycleInProgress flips the in-progress gauge
func SetCycleInProgress(running bool) {
	if running {
		IngestionCycleInProgress.Set(1)
		return
	}
	IngestionCycleInProgress.Set(0)
}

// RecordUpstreamRequest records an outbound marketplace request. A zero
// status code means the request never got a response.
func RecordUpstreamRequest(marketplace string, statusCode int, durationSeconds float64) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	UpstreamRequestsTotal.WithLabelValues(marketplace, code).Inc()
	UpstreamRequestDuration.WithLabelValues(marketplace).Observe(durationSeconds)
}

// RecordQuote records a generated comparator quote
func RecordQuote(storeID string, inStock bool) {
	ComparatorQuotesGenerated.WithLabelValues(storeID, strconv.FormatBool(inStock)).Inc()
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
