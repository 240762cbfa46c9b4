package metrics

import (
	"github.com/marmos91/formflow/pkg/multipart"
)

// NewDecoderMetrics creates a new Prometheus-backed multipart.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should pass nil to decoders, which
// results in zero overhead.
//
// Example usage:
//
//	metrics.InitRegistry()
//	dec := multipart.NewDecoder(r, boundary,
//		multipart.WithMetrics(metrics.NewDecoderMetrics()))
func NewDecoderMetrics() multipart.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusDecoderMetrics()
}

// newPrometheusDecoderMetrics is implemented in pkg/metrics/prometheus.
// This indirection avoids import cycles while keeping the API clean.
var newPrometheusDecoderMetrics func() multipart.Metrics

// RegisterDecoderMetricsConstructor registers the Prometheus decoder metrics
// constructor. Called by pkg/metrics/prometheus during package initialization.
func RegisterDecoderMetricsConstructor(constructor func() multipart.Metrics) {
	newPrometheusDecoderMetrics = constructor
}
