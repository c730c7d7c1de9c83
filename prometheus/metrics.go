package prometheus

import (
	"sync"
	"time"

	"commerce-api/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Entity operation metrics
	EntityOperationsCounter prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Exception metrics
	ExceptionsCounter prometheus.CounterVec

	// Event publication metrics
	EventsPublishedCounter prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() {
		// Use metric prefix from configuration
		prefix := cfg.Metrics.Prefix

		// HTTP request metrics
		HttpRequestsTotal = *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		// HTTP request duration
		HttpRequestDuration = *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		// Entity operation metrics
		EntityOperationsCounter = *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_entity_operations_total",
				Help: "Total number of entity operations",
			},
			[]string{"entity", "operation"},
		)

		// Database operation metrics
		DbOperationDuration = *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		)

		// Exception metrics
		ExceptionsCounter = *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_exceptions_total",
				Help: "Total number of unhandled exceptions by operation",
			},
			[]string{"operation"},
		)

		// Event publication metrics
		EventsPublishedCounter = *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_events_published_total",
				Help: "Total number of change events published by outcome",
			},
			[]string{"outcome"},
		)
	})
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordEntityOperation increments the counter for entity operations
func RecordEntityOperation(entity, operation string) {
	EntityOperationsCounter.WithLabelValues(entity, operation).Inc()
}

// RecordException increments the exception counter for an operation
func RecordException(operation string) {
	ExceptionsCounter.WithLabelValues(operation).Inc()
}

// RecordEventPublished increments the event publication counter
func RecordEventPublished(outcome string) {
	EventsPublishedCounter.WithLabelValues(outcome).Inc()
}
