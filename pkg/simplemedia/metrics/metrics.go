// Package metrics exposes use case and HTTP metrics through Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "simplemedia"

// Recorder implements simplemedia.MetricsRecorder and carries the HTTP
// request metrics used by the api package.
type Recorder struct {
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ThumbnailsTotal    prometheus.Counter
	ThumbnailBytes     prometheus.Histogram
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers every collector with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total use case invocations by outcome",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Use case duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		ThumbnailsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thumbnails_total",
				Help:      "Total thumbnails stored",
			},
		),
		ThumbnailBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "thumbnail_bytes",
				Help:      "Size of stored thumbnails in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 8),
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveOperation records one use case call
func (r *Recorder) ObserveOperation(operation, result string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, result).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ThumbnailGenerated records one stored thumbnail
func (r *Recorder) ThumbnailGenerated(sizeBytes int) {
	r.ThumbnailsTotal.Inc()
	r.ThumbnailBytes.Observe(float64(sizeBytes))
}

// ObserveHTTPRequest records one served HTTP request
func (r *Recorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	r.HTTPRequestSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
