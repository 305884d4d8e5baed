// Package metrics exposes check counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/metacheck/internal/models"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	files         *prometheus.CounterVec
	discrepancies *prometheus.CounterVec
	runs          prometheus.Counter
	runDuration   prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metacheck",
			Name:      "files_checked_total",
			Help:      "Files checked, by outcome.",
		}, []string{"outcome"}),
		discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metacheck",
			Name:      "discrepancies_total",
			Help:      "Discrepancies found, by kind and severity.",
		}, []string{"kind", "severity"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metacheck",
			Name:      "runs_total",
			Help:      "Check runs completed.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metacheck",
			Name:      "run_duration_seconds",
			Help:      "Wall time of check runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.files, m.discrepancies, m.runs, m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFile records the findings of one file.
func (m *Metrics) ObserveFile(f models.FileResult) {
	if m == nil {
		return
	}
	outcome := "clean"
	switch {
	case models.HasErrors(f.Discrepancies):
		outcome = "error"
	case !f.Clean():
		outcome = "warning"
	}
	m.files.WithLabelValues(outcome).Inc()
	for _, d := range f.Discrepancies {
		m.discrepancies.WithLabelValues(string(d.Kind), string(d.Severity)).Inc()
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.runDuration.Observe(d.Seconds())
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
