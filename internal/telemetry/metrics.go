package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts finished operations, dropped tags and failed exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	tagsDropped    *prometheus.CounterVec
	exportFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Name:      "operations_total",
			Help:      "Finished operations by name and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appointments",
			Name:      "operation_duration_seconds",
			Help:      "Operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		tagsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemetry",
			Name:      "tags_dropped_total",
			Help:      "Span attributes dropped because their type is unsupported.",
		}, []string{"type"}),
		exportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Name:      "export_failures_total",
			Help:      "Span records that could not be written to the sink.",
		}),
	}
	reg.MustRegister(m.operations, m.duration, m.tagsDropped, m.exportFailures)
	return m
}

func (m *Metrics) observe(s *Span) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(s.Name, s.Status.String()).Inc()
	m.duration.WithLabelValues(s.Name).Observe(s.Duration().Seconds())
}

func (m *Metrics) tagDropped(typeName string) {
	if m == nil {
		return
	}
	m.tagsDropped.WithLabelValues(typeName).Inc()
}

func (m *Metrics) exportFailed() {
	if m == nil {
		return
	}
	m.exportFailures.Inc()
}
