// Package metrics provides observability for Arca conversion batches using
// Prometheus metrics. It offers pre-registered collectors for tracing,
// serialization and deserialization throughput, error counts, and batch
// latency distributions.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	arrays, err := convert.Serialize(s, records, opts)
//	metrics.ObserveBatch("serialize", len(records), timer.Stop(), err)
//
// Metrics are recorded by the collaborator layers (CLI, IPC writers); the
// conversion core itself stays free of metric dependencies.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

var (
	// RecordsConverted tracks the total number of records moved through a
	// conversion. Labels: operation (trace/serialize/deserialize), status
	// (success/failure).
	RecordsConverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arca_records_converted_total",
			Help: "Total number of records traced, serialized or deserialized",
		},
		[]string{"operation", "status"},
	)

	// BatchesConverted tracks whole batches by outcome.
	BatchesConverted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arca_batches_converted_total",
			Help: "Total number of conversion batches",
		},
		[]string{"operation", "status"},
	)

	// ConversionErrors tracks structured errors by category and code.
	ConversionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arca_conversion_errors_total",
			Help: "Total number of conversion errors",
		},
		[]string{"type", "code"},
	)

	// BatchDuration tracks the distribution of batch latencies in seconds.
	// Labels: operation (trace/serialize/deserialize).
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "arca_batch_duration_seconds",
			Help: "Conversion batch latency in seconds",
			Buckets: []float64{
				1e-5, // 10μs - tiny batches
				1e-4, // 100μs
				1e-3, // 1ms - standard batches
				1e-2, // 10ms
				1e-1, // 100ms - large batches
				1,    // 1s
				10,   // 10s
			},
		},
		[]string{"operation"},
	)

	// BatchRows tracks batch sizes in records.
	BatchRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arca_batch_rows",
			Help:    "Records per conversion batch",
			Buckets: prometheus.ExponentialBuckets(1, 10, 8),
		},
		[]string{"operation"},
	)
)

// ObserveBatch records the outcome of one conversion batch: record and batch
// counters, the latency histogram, and, on failure, the error breakdown.
func ObserveBatch(operation string, rows int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		ObserveError(err)
	}
	RecordsConverted.WithLabelValues(operation, status).Add(float64(rows))
	BatchesConverted.WithLabelValues(operation, status).Inc()
	BatchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	BatchRows.WithLabelValues(operation).Observe(float64(rows))
}

// ObserveError records one structured error by category and code.
func ObserveError(err error) {
	var ae *arcaerrors.Error
	if !errors.As(err, &ae) {
		ConversionErrors.WithLabelValues("unknown", "unknown").Inc()
		return
	}
	ConversionErrors.WithLabelValues(string(ae.Type), string(ae.Code)).Inc()
}

// Timer provides a simple timing mechanism for measuring batch durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
