package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide registry and the metrics that belong to no
// single component.
type Metrics struct {
	Registry *prometheus.Registry

	Info        *prometheus.GaugeVec
	Processors  prometheus.Gauge
	AuditDrops  prometheus.CounterFunc
	HTTPLatency *prometheus.HistogramVec
}

// New creates a registry with the Go and process collectors and registers
// the process metrics on it. dropped may be nil.
func New(version string, dropped func() int64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		Info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "warden_build_info",
			Help: "Build information, always 1",
		}, []string{"version"}),
		Processors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_processors_registered",
			Help: "Number of processors registered in the verification pipeline",
		}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.Info.WithLabelValues(version).Set(1)
	if dropped != nil {
		m.AuditDrops = factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "warden_audit_events_dropped_total",
			Help: "Audit events discarded because the async buffer was full",
		}, func() float64 { return float64(dropped()) })
	}
	return m
}

// SetProcessors records how many processors the pipeline runs.
func (m *Metrics) SetProcessors(n int) {
	m.Processors.Set(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
