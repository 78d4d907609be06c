package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "county_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal       prometheus.Counter
	RunErrors       *prometheus.CounterVec // labels: kind={schema,integrity,alignment,policy,extract,load,derive}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Per-metric derivation results.
	Entities      *prometheus.GaugeVec // labels: metric
	WeeksComplete *prometheus.GaugeVec // labels: metric
	WeeksExcluded *prometheus.GaugeVec // labels: metric

	PlaceholderRowsDropped *prometheus.CounterVec // labels: table
	RateEntitiesSkipped    *prometheus.CounterVec // labels: metric
	RowsPublished          *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total pipeline runs started.",
		}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Failed pipeline runs by failure kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-derive-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		Entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities",
			Help:      "Counties with rates in the latest report.",
		}, []string{"metric"}),
		WeeksComplete: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weeks_complete",
			Help:      "Complete weeks in the latest report.",
		}, []string{"metric"}),
		WeeksExcluded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weeks_excluded",
			Help:      "Incomplete weeks dropped from the latest report.",
		}, []string{"metric"}),
		PlaceholderRowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholder_rows_dropped_total",
			Help:      "Unallocated placeholder rows dropped while loading tables.",
		}, []string{"table"}),
		RateEntitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_entities_skipped_total",
			Help:      "Counties left out of rate panels under the skip integrity policy.",
		}, []string{"metric"}),
		RowsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Rows written to each sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunErrors,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.Entities,
		m.WeeksComplete,
		m.WeeksExcluded,
		m.PlaceholderRowsDropped,
		m.RateEntitiesSkipped,
		m.RowsPublished,
	}
}
