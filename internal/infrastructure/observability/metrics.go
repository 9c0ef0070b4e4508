package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "replay_proxy"

type Metrics struct {
	registry          *prometheus.Registry
	OutcomesTotal     *prometheus.CounterVec
	StoryEntriesTotal prometheus.Counter
	RecordingActive   prometheus.Gauge
	CodecErrorsTotal  *prometheus.CounterVec
	ProxyErrorsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Classified requests by outcome bucket",
		}, []string{"bucket"}),
		StoryEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "story_entries_total",
			Help:      "Story log lines appended",
		}),
		RecordingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_active",
			Help:      "1 while a scenario recording session is open",
		}),
		CodecErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_errors_total",
			Help:      "Body compression failures by operation",
		}, []string{"op"}),
		ProxyErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_errors_total",
			Help:      "Total proxy errors by stage",
		}, []string{"stage"}),
	}
	r.MustRegister(m.OutcomesTotal, m.StoryEntriesTotal, m.RecordingActive, m.CodecErrorsTotal, m.ProxyErrorsTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
