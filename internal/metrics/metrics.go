package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levelogd_storage_calls_total",
			Help: "Total storage backend calls",
		},
		[]string{"backend", "op", "status"},
	)

	StorageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "levelogd_storage_latency_seconds",
			Help:    "Storage backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	StorageFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levelogd_storage_fallbacks_total",
			Help: "Remote store failures absorbed by the local store",
		},
		[]string{"op"},
	)

	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levelogd_repository_outcomes_total",
			Help: "Repository operation outcomes",
		},
		[]string{"op", "outcome"},
	)

	Readings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "levelogd_readings",
			Help: "Readings currently held in memory",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levelogd_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levelogd_exports_total",
			Help: "Exports written by format and trigger",
		},
		[]string{"format", "trigger"},
	)
)

// ObserveStorage records one backend call started at start.
func ObserveStorage(backend, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StorageCalls.WithLabelValues(backend, op, status).Inc()
	StorageLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
