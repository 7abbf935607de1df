package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs              *prometheus.CounterVec
	Rejections        *prometheus.CounterVec
	ProcessorErrors   *prometheus.CounterVec
	ProcessorDuration *prometheus.HistogramVec
	RunDuration       prometheus.Histogram
}

// New registers the pipeline metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_runs_total",
			Help: "Total number of verification runs by outcome",
		}, []string{"status"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_rejections_total",
			Help: "Total number of connections rejected, by processor",
		}, []string{"processor"}),
		ProcessorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_processor_errors_total",
			Help: "Total number of processor errors, by processor and applied policy",
		}, []string{"processor", "policy"}),
		ProcessorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_verification_processor_duration_seconds",
			Help:    "Latency of individual processor evaluations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"processor"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_verification_run_duration_seconds",
			Help:    "Latency of complete verification runs",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveRun(status string, elapsed time.Duration) {
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementRejections(processor string) {
	m.Rejections.WithLabelValues(processor).Inc()
}

func (m *Metrics) IncrementProcessorErrors(processor string, failOpen bool) {
	policy := "fail_closed"
	if failOpen {
		policy = "fail_open"
	}
	m.ProcessorErrors.WithLabelValues(processor, policy).Inc()
}

func (m *Metrics) ObserveProcessor(processor string, elapsed time.Duration) {
	m.ProcessorDuration.WithLabelValues(processor).Observe(elapsed.Seconds())
}
