package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "warden"
	subsystem = "addressintel"
)

type Metrics struct {
	Entries       *prometheus.GaugeVec
	FetchFailures *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	SetSize       prometheus.Gauge
	LastLoad      prometheus.Gauge
	Hits          *prometheus.CounterVec
	VPNLookups    *prometheus.CounterVec
	VPNCacheHits  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "source_entries",
			Help:      "Number of prefixes returned by each source on its last successful fetch.",
		}, []string{"source"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_failures_total",
			Help:      "Total number of failed source fetches.",
		}, []string{"source"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "set_prefixes",
			Help:      "Number of distinct prefixes in the active address set.",
		}),
		LastLoad: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_load_timestamp",
			Help:      "Unix timestamp of the last address set swap.",
		}),
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hits_total",
			Help:      "Total number of connections matched, by source.",
		}, []string{"source"}),
		VPNLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vpn_lookups_total",
			Help:      "Total number of VPN API lookups, by outcome.",
		}, []string{"outcome"}),
		VPNCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "vpn_cache_hits_total",
			Help:      "Total number of VPN verdicts served from cache.",
		}),
	}
}

func (m *Metrics) ObserveFetch(source string, prefixes int, elapsed time.Duration, err error) {
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchFailures.WithLabelValues(source).Inc()
		return
	}
	m.Entries.WithLabelValues(source).Set(float64(prefixes))
}

func (m *Metrics) ObserveSwap(size int, at time.Time) {
	m.SetSize.Set(float64(size))
	m.LastLoad.Set(float64(at.Unix()))
}

func (m *Metrics) IncrementHits(source string) {
	m.Hits.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementVPNLookups(outcome string) {
	m.VPNLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementVPNCacheHits() {
	m.VPNCacheHits.Inc()
}
