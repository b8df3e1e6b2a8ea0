// Package observability exports media library telemetry to Prometheus.
package observability

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for blob, resize and ingestion operations.
type Observer interface {
	RecordBlob(op, category string, duration time.Duration, sizeBytes int, err error)
	RecordResize(source string, sizes int, duration time.Duration, err error)
	RecordIngest(outcome, stage string)
}

// PrometheusObserver exports library metrics to Prometheus.
type PrometheusObserver struct {
	blobDuration   *prometheus.HistogramVec
	blobErrors     *prometheus.CounterVec
	blobBytes      prometheus.Counter
	resizeDuration *prometheus.HistogramVec
	resizeErrors   *prometheus.CounterVec
	renditions     prometheus.Counter
	ingestFiles    *prometheus.CounterVec
}

// NewPrometheusObserver registers blob, resize and ingest metrics on reg.
// Collectors already registered under the same names are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "medialib"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		blobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "blob",
			Name:      "operation_duration_seconds",
			Help:      "Latency of blob store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "category"}),
		blobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blob",
			Name:      "operation_errors_total",
			Help:      "Count of failed blob store operations.",
		}, []string{"operation", "category"}),
		blobBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blob",
			Name:      "stored_bytes_total",
			Help:      "Cumulative payload size written to the blob store.",
		}),
		resizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resize",
			Name:      "duration_seconds",
			Help:      "Latency of resize worker calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		resizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resize",
			Name:      "errors_total",
			Help:      "Count of failed or timed out resize worker calls.",
		}, []string{"source"}),
		renditions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resize",
			Name:      "renditions_total",
			Help:      "Resized renditions returned by the resize worker.",
		}),
		ingestFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files processed by the ingestion pipeline by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
	}

	var err error
	if o.blobDuration, err = register(reg, o.blobDuration); err != nil {
		return nil, err
	}
	if o.blobErrors, err = register(reg, o.blobErrors); err != nil {
		return nil, err
	}
	if o.blobBytes, err = register(reg, o.blobBytes); err != nil {
		return nil, err
	}
	if o.resizeDuration, err = register(reg, o.resizeDuration); err != nil {
		return nil, err
	}
	if o.resizeErrors, err = register(reg, o.resizeErrors); err != nil {
		return nil, err
	}
	if o.renditions, err = register(reg, o.renditions); err != nil {
		return nil, err
	}
	if o.ingestFiles, err = register(reg, o.ingestFiles); err != nil {
		return nil, err
	}

	return o, nil
}

// register adds c to reg, returning the existing collector when one with the
// same descriptor is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register library metric: %w", err)
	}
	return c, nil
}

// RecordBlob tracks blob store latency, failures and stored bytes.
func (o *PrometheusObserver) RecordBlob(op, category string, duration time.Duration, sizeBytes int, err error) {
	if o == nil {
		return
	}
	o.blobDuration.WithLabelValues(op, category).Observe(duration.Seconds())
	if err != nil {
		o.blobErrors.WithLabelValues(op, category).Inc()
		return
	}
	if op == "put" {
		o.blobBytes.Add(float64(sizeBytes))
	}
}

// RecordResize tracks resize worker latency and failures.
func (o *PrometheusObserver) RecordResize(source string, sizes int, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.resizeDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		o.resizeErrors.WithLabelValues(source).Inc()
		return
	}
	o.renditions.Add(float64(sizes))
}

// RecordIngest counts one processed upload.
func (o *PrometheusObserver) RecordIngest(outcome, stage string) {
	if o == nil {
		return
	}
	o.ingestFiles.WithLabelValues(outcome, stage).Inc()
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) RecordBlob(string, string, time.Duration, int, error) {}

func (NopObserver) RecordResize(string, int, time.Duration, error) {}

func (NopObserver) RecordIngest(string, string) {}
