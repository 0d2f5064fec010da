package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gaswx"

// Ingest kinds used as label values.
const (
	KindWeather     = "weather"
	KindTicks       = "ticks"
	KindSettlements = "settlements"
)

// Metrics holds the Prometheus collectors for ingestion, refresh and analysis.
type Metrics struct {
	// labels: kind={weather,ticks,settlements}, outcome={inserted,skipped}
	IngestRecords *prometheus.CounterVec
	// labels: kind
	IngestBatchFailures *prometheus.CounterVec
	IngestBatchDuration prometheus.Histogram

	// labels: outcome={success,error}
	WeatherFetches *prometheus.CounterVec
	RefreshRuns    *prometheus.CounterVec
	LastRefresh    prometheus.Gauge

	AlertsSent prometheus.Counter
	// labels: variant={futures,settlement}
	AnalysisRuns *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Records offered to the store by kind and outcome.",
		}, []string{"kind", "outcome"}),
		IngestBatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batch_failures_total",
			Help:      "Batches rolled back because of a store error.",
		}, []string{"kind"}),
		IngestBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "Duration of one batch transaction.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Weather archive requests by outcome.",
		}, []string{"outcome"}),
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Scheduled weather refresh cycles by outcome.",
		}, []string{"outcome"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful weather refresh.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Extreme weather alerts delivered.",
		}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Completed analyses by price variant.",
		}, []string{"variant"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.IngestRecords,
			m.IngestBatchFailures,
			m.IngestBatchDuration,
			m.WeatherFetches,
			m.RefreshRuns,
			m.LastRefresh,
			m.AlertsSent,
			m.AnalysisRuns,
		)
	}
	return m
}

// ObserveIngest adds inserted and skipped counts for one kind. Safe on a nil receiver.
func (m *Metrics) ObserveIngest(kind string, inserted, skipped int) {
	if m == nil {
		return
	}
	m.IngestRecords.WithLabelValues(kind, "inserted").Add(float64(inserted))
	m.IngestRecords.WithLabelValues(kind, "skipped").Add(float64(skipped))
}

// ObserveBatchFailure counts one rolled back batch. Safe on a nil receiver.
func (m *Metrics) ObserveBatchFailure(kind string) {
	if m == nil {
		return
	}
	m.IngestBatchFailures.WithLabelValues(kind).Inc()
}

// ObserveBatchDuration records a batch transaction latency in seconds. Safe on a nil receiver.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.IngestBatchDuration.Observe(seconds)
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
