// Package metrics provides Prometheus metrics for the Optiply target:
// per-stream record outcomes, request latency, retry counts, and token
// lifecycle events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed tracks per-record outcomes.
	// Labels: stream (logical stream name), outcome (success/skipped/not_found/failed)
	//
	// Example:
	//	metrics.RecordsProcessed.WithLabelValues("Products", "success").Inc()
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiply_records_processed_total",
			Help: "Total number of records processed by outcome",
		},
		[]string{"stream", "outcome"},
	)

	// RequestLatency tracks the distribution of API request latencies in seconds.
	// Labels: method (POST/PATCH), resource (wire resource type)
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optiply_request_duration_seconds",
			Help:    "Latency of Optiply API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	// RequestRetries counts retried requests.
	// Labels: resource (wire resource type)
	RequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiply_request_retries_total",
			Help: "Total number of retried API requests",
		},
		[]string{"resource"},
	)

	// TokenRenewals counts credential renewals.
	// Labels: kind (refresh/password)
	TokenRenewals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiply_token_renewals_total",
			Help: "Total number of token renewals by grant kind",
		},
		[]string{"kind"},
	)
)

// Outcome label values for RecordsProcessed.
const (
	OutcomeSuccess  = "success"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)
