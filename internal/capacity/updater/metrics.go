package updater

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "queuecapacity"
	SUBSYSTEM = "updater"
)

// Metrics about capacity passes. Metrics implements prometheus.Collector.
type Metrics struct {
	// Time taken by each successful pass.
	passDuration prometheus.Histogram
	// Number of warnings reported, by kind.
	warnings *prometheus.CounterVec
	// Number of passes rejected because of invalid input.
	failedPasses prometheus.Counter
	// Number of queues resolved by the last successful pass.
	queues prometheus.Gauge
	// Number of labels resolved by the last successful pass.
	labels prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "pass_duration_seconds",
				Help:      "Time taken to recompute the capacities of every queue.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "warnings_total",
				Help:      "Number of capacity configuration warnings reported.",
			},
			[]string{"kind"},
		),
		failedPasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "failed_passes_total",
				Help:      "Number of passes rejected because of invalid input.",
			},
		),
		queues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "queues",
				Help:      "Number of queues resolved by the last pass.",
			},
		),
		labels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "labels",
				Help:      "Number of node labels resolved by the last pass.",
			},
		),
	}
}

func (m *Metrics) ReportPass(duration time.Duration, queues, labels int, warnings []Warning) {
	if m == nil {
		return
	}
	m.passDuration.Observe(duration.Seconds())
	m.queues.Set(float64(queues))
	m.labels.Set(float64(labels))
	for _, w := range warnings {
		m.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
}

func (m *Metrics) ReportFailure() {
	if m == nil {
		return
	}
	m.failedPasses.Inc()
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.passDuration.Describe(ch)
	m.warnings.Describe(ch)
	m.failedPasses.Describe(ch)
	m.queues.Describe(ch)
	m.labels.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.passDuration.Collect(ch)
	m.warnings.Collect(ch)
	m.failedPasses.Collect(ch)
	m.queues.Collect(ch)
	m.labels.Collect(ch)
}
