package simplemedia

import "time"

// NoopMetrics is a no-operation implementation of MetricsRecorder
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() MetricsRecorder {
	return &NoopMetrics{}
}

// ObserveOperation does nothing
func (n *NoopMetrics) ObserveOperation(operation, result string, duration time.Duration) {}

// ThumbnailGenerated does nothing
func (n *NoopMetrics) ThumbnailGenerated(sizeBytes int) {}
