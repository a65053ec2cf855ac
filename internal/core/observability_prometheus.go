package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports transaction counters and latency histograms.
type PrometheusMetricsRecorder struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the labcore collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcore",
			Name:      "transactions_total",
			Help:      "Units of work run through the transaction boundary, by operation and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labcore",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of units of work, by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{r.total, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.total.WithLabelValues(operation, statusLabel(success)).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}
