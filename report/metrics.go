package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the outcomes of finished runs.
type Metrics struct {
	items   *prometheus.CounterVec
	runs    *prometheus.CounterVec
	lastRun *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hugh",
			Name:      "items_total",
			Help:      "Items processed by batch runs, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hugh",
			Name:      "runs_total",
			Help:      "Finished batch runs, by name and whether any item failed.",
		}, []string{"name", "failed"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hugh",
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the last finished run.",
		}, []string{"name"}),
	}
	reg.MustRegister(m.items, m.runs, m.lastRun)
	return m
}

// Observe counts the entries of a finished run.
func (m *Metrics) Observe(l *Log) {
	for _, e := range l.Entries() {
		m.items.WithLabelValues(string(e.Kind), string(e.Outcome)).Inc()
	}
	failed := "false"
	if l.Failed() {
		failed = "true"
	}
	m.runs.WithLabelValues(l.Name, failed).Inc()
	m.lastRun.WithLabelValues(l.Name).Set(float64(l.Started.Unix()))
}
