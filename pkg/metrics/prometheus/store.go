package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/formflow/pkg/metrics"
	"github.com/marmos91/formflow/pkg/store"
)

// storeMetrics is the Prometheus implementation of store.Metrics.
type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	uploadsAborted    *prometheus.CounterVec
}

// newStoreMetrics creates a new Prometheus-backed store.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func newStoreMetrics() store.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &storeMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_store_operations_total",
				Help: "Total number of store operations by backend, operation, and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "formflow_store_operation_duration_milliseconds",
				Help: "Duration of store operations in milliseconds",
				Buckets: []float64{
					1,     // 1ms - memory and local reads
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms - small remote objects
					1000,  // 1s
					5000,  // 5s - large uploads
					30000, // 30s - very large operations
				},
			},
			[]string{"backend", "operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_store_bytes_transferred_total",
				Help: "Total bytes transferred through the store",
			},
			[]string{"backend", "direction"},
		),
		uploadsAborted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "formflow_store_uploads_aborted_total",
				Help: "Total number of streamed uploads aborted after a partial write",
			},
			[]string{"backend"},
		),
	}
}

func (m *storeMetrics) ObserveOperation(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))
}

func (m *storeMetrics) RecordBytes(backend, direction string, n int64) {
	m.bytesTransferred.WithLabelValues(backend, direction).Add(float64(n))
}

func (m *storeMetrics) RecordUploadAborted(backend string) {
	m.uploadsAborted.WithLabelValues(backend).Inc()
}
