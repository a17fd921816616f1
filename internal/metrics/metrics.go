package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the drive service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec   // drive_operations_total{operation,status}
	OperationDuration *prometheus.HistogramVec // drive_operation_duration_seconds{operation}
	BytesUploaded     prometheus.Counter       // drive_bytes_uploaded_total
	QuotaCorrections  prometheus.Counter       // drive_quota_drift_corrections_total
	QuotaDriftBytes   prometheus.Counter       // drive_quota_drift_bytes_total
	BlobOperations    *prometheus.CounterVec   // drive_blob_operations_total{op,status}
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_operations_total",
			Help: "Drive operations by name and result kind",
		}, []string{"operation", "status"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drive_operation_duration_seconds",
			Help:    "Drive operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "drive_bytes_uploaded_total",
			Help: "Total bytes accepted by upload and replace",
		}),

		QuotaCorrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "drive_quota_drift_corrections_total",
			Help: "Quota recomputations that found and fixed drift",
		}),

		QuotaDriftBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "drive_quota_drift_bytes_total",
			Help: "Absolute bytes of quota drift corrected",
		}),

		BlobOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_blob_operations_total",
			Help: "Blob store operations by kind and result",
		}, []string{"op", "status"}),
	}
}

// ObserveOperation records one finished operation. status is "ok" or an
// error kind name.
func (m *Metrics) ObserveOperation(operation string, status string, started time.Time) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AddUploadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesUploaded.Add(float64(n))
}

func (m *Metrics) ObserveQuotaDrift(drift int64) {
	if m == nil || drift == 0 {
		return
	}
	if drift < 0 {
		drift = -drift
	}
	m.QuotaCorrections.Inc()
	m.QuotaDriftBytes.Add(float64(drift))
}

// ObserveBlobOp satisfies blobstore.Observer.
func (m *Metrics) ObserveBlobOp(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BlobOperations.WithLabelValues(op, status).Inc()
}
