// Package observability provides metrics collection backed by Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jasher4994/judgesync/internal/ports"
)

// metricLabels are the label names every vector is registered with.
// Prometheus requires a fixed label set per metric, so unknown keys in a
// caller's label map are dropped rather than registered dynamically.
var metricLabels = []string{"provider", "model", "status"}

// PrometheusCollector implements ports.MetricsCollector on top of a
// Prometheus registry. The zero value is not usable; use NewPrometheusCollector.
type PrometheusCollector struct {
	latencies  *prometheus.HistogramVec
	counters   *prometheus.CounterVec
	histograms *prometheus.HistogramVec
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the collector's metric vectors with the
// default registry.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return NewPrometheusCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWith registers the collector's metric vectors with
// reg. Tests pass a private registry to avoid duplicate registration panics.
func NewPrometheusCollectorWith(namespace string, reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		latencies: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of judge and LLM operations.",
			Buckets:   prometheus.DefBuckets,
		}, append([]string{"operation"}, metricLabels...)),
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Counts of judge and LLM events.",
		}, append([]string{"metric"}, metricLabels...)),
		histograms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "observed_values",
			Help:      "Distributions of observed judge and LLM values.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, append([]string{"metric"}, metricLabels...)),
	}
}

// RecordLatency records the execution time of an operation.
func (c *PrometheusCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	c.latencies.WithLabelValues(withName(operation, labels)...).Observe(duration.Seconds())
}

// RecordCounter increments a counter metric.
func (c *PrometheusCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.counters.WithLabelValues(withName(metric, labels)...).Add(value)
}

// RecordHistogram records a value in a histogram.
func (c *PrometheusCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.histograms.WithLabelValues(withName(metric, labels)...).Observe(value)
}

func withName(name string, labels map[string]string) []string {
	values := make([]string, 0, len(metricLabels)+1)
	values = append(values, name)
	for _, key := range metricLabels {
		values = append(values, labels[key])
	}
	return values
}
