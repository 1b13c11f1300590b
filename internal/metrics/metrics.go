// Package metrics records conversion counters in a private Prometheus
// registry that the CLIs dump to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ssi"

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the conversion collectors.
type Metrics struct {
	Registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	points      *prometheus.CounterVec
	outputs     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Source conversions by outcome.",
		}, []string{"source", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of fetch, normalize and build per source.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"source"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectral_points_total",
			Help:      "Irradiance values written to canonical datasets.",
		}, []string{"source"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_persisted_total",
			Help:      "Datasets persisted by sink.",
		}, []string{"sink"}),
	}
	m.Registry.MustRegister(m.conversions, m.duration, m.points, m.outputs)
	return m
}

// ObserveConversion records one finished conversion. Safe on a nil receiver.
func (m *Metrics) ObserveConversion(source string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.conversions.WithLabelValues(source, status).Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// AddPoints counts irradiance values for a source.
func (m *Metrics) AddPoints(source string, n int) {
	if m == nil {
		return
	}
	m.points.WithLabelValues(source).Add(float64(n))
}

// IncPersisted counts one dataset written by sink.
func (m *Metrics) IncPersisted(sink string) {
	if m == nil {
		return
	}
	m.outputs.WithLabelValues(sink).Inc()
}

// WriteTextfile writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
