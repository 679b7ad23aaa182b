package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal    *prometheus.CounterVec
	cmsScore        prometheus.Gauge
	inputsTotal     *prometheus.CounterVec
	incompleteTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_signals_total",
				Help: "Total number of trading signals generated",
			},
			[]string{"signal_type"},
		),
		cmsScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigfuse_cms_score",
				Help: "Most recent Composite Market Score",
			},
		),
		inputsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_inputs_total",
				Help: "Total input messages processed per channel",
			},
			[]string{"channel"},
		),
		incompleteTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_incomplete_state_total",
				Help: "Signal attempts skipped for missing state, by missing slice",
			},
			[]string{"missing"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records a generated signal by decision type.
func (r *Recorder) RecordSignal(signalType string) {
	r.signalsTotal.WithLabelValues(signalType).Inc()
}

// RecordCMS records the most recent composite score.
func (r *Recorder) RecordCMS(score float64) {
	r.cmsScore.Set(score)
}

// RecordInput records one processed input message.
func (r *Recorder) RecordInput(channel string) {
	r.inputsTotal.WithLabelValues(channel).Inc()
}

// RecordIncomplete records a skipped signal attempt.
func (r *Recorder) RecordIncomplete(missing string) {
	r.incompleteTotal.WithLabelValues(missing).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
