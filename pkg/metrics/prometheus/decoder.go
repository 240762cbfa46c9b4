// Package prometheus provides the Prometheus implementations of the
// FormFlow metrics interfaces. Importing it (usually blank) registers the
// constructors with pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/formflow/pkg/metrics"
	"github.com/marmos91/formflow/pkg/multipart"
)

func init() {
	metrics.RegisterDecoderMetricsConstructor(newDecoderMetrics)
	metrics.RegisterStoreMetricsConstructor(newStoreMetrics)
}

// decoderMetrics is the Prometheus implementation of multipart.Metrics.
type decoderMetrics struct {
	decodesInFlight prometheus.Gauge
	decodesTotal    *prometheus.CounterVec
	decodeDuration  *prometheus.HistogramVec
	fieldsTotal     *prometheus.CounterVec
	contentBytes    prometheus.Counter
	chunkSize       prometheus.Histogram
}

// newDecoderMetrics creates a new Prometheus-backed multipart.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func newDecoderMetrics() multipart.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &decoderMetrics{
		decodesInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "formflow_decodes_in_flight",
				Help: "Number of multipart decode runs currently in progress",
			},
		),
		decodesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_decodes_total",
				Help: "Total number of multipart decode runs by final status",
			},
			[]string{"status"}, // "ok", "error", "canceled"
		),
		decodeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "formflow_decode_duration_milliseconds",
				Help: "Duration of multipart decode runs in milliseconds",
				Buckets: []float64{
					1,     // 1ms - small value-only forms
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms - medium uploads
					1000,  // 1s
					5000,  // 5s - large uploads
					30000, // 30s - very large or slow clients
				},
			},
			[]string{"status"},
		),
		fieldsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_fields_total",
				Help: "Total number of decoded form fields by kind",
			},
			[]string{"kind"}, // "value", "stream"
		),
		contentBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "formflow_content_bytes_total",
				Help: "Total streamed content bytes delivered to consumers",
			},
		),
		chunkSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formflow_content_chunk_bytes",
				Help:    "Size distribution of streamed content chunks in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. 1MiB
			},
		),
	}
}

func (m *decoderMetrics) DecodeStarted() {
	m.decodesInFlight.Inc()
}

func (m *decoderMetrics) DecodeCompleted(duration time.Duration, status string) {
	m.decodesInFlight.Dec()
	m.decodesTotal.WithLabelValues(status).Inc()
	m.decodeDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func (m *decoderMetrics) FieldDecoded(kind string) {
	m.fieldsTotal.WithLabelValues(kind).Inc()
}

func (m *decoderMetrics) ContentBytes(n int) {
	m.contentBytes.Add(float64(n))
	m.chunkSize.Observe(float64(n))
}
