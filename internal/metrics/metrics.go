// Package metrics records pipeline run metrics on a private Prometheus
// registry and flushes them to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	Registry *prometheus.Registry

	SourceRuns       *prometheus.CounterVec
	RecordsScraped   *prometheus.CounterVec
	RecordsKept      *prometheus.CounterVec
	RecordsSkipped   prometheus.Counter
	SourceDuration   *prometheus.HistogramVec
	LastRunTimestamp prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SourceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crimenet_source_runs_total",
				Help: "Listing fetches per source, labeled by outcome.",
			},
			[]string{"source", "outcome"},
		),
		RecordsScraped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crimenet_records_scraped_total",
				Help: "Headline records returned by each source.",
			},
			[]string{"source"},
		),
		RecordsKept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crimenet_records_kept_total",
				Help: "Headline records classified as crime related and persisted.",
			},
			[]string{"source"},
		),
		RecordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crimenet_records_skipped_total",
				Help: "Records skipped by the classifier for missing title or link.",
			},
		),
		SourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crimenet_source_fetch_duration_seconds",
				Help:    "Duration of listing fetches in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crimenet_last_run_timestamp_seconds",
				Help: "Unix time the last run finished.",
			},
		),
	}
	m.Registry.MustRegister(
		m.SourceRuns,
		m.RecordsScraped,
		m.RecordsKept,
		m.RecordsSkipped,
		m.SourceDuration,
		m.LastRunTimestamp,
	)
	return m
}

// ObserveSource records one listing fetch.
func (m *Metrics) ObserveSource(source string, records int, err error, d time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.SourceRuns.WithLabelValues(source, outcome).Inc()
	m.RecordsScraped.WithLabelValues(source).Add(float64(records))
	m.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveKept(source string) {
	m.RecordsKept.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSkipped(n int) {
	m.RecordsSkipped.Add(float64(n))
}

// WriteTextfile stamps the run time and writes the registry to path.
func (m *Metrics) WriteTextfile(path string, finished time.Time) error {
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, m.Registry)
}
