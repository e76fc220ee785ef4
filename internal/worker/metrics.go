package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the export pipeline. Registration goes through the
// caller-supplied registerer so tests can use an isolated registry.
type Metrics struct {
	JobsProcessed  *prometheus.CounterVec
	JobsRunning    prometheus.Gauge
	RowsExported   prometheus.Counter
	Checkpoints    prometheus.Counter
	ExportDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traxyard",
			Subsystem: "export",
			Name:      "jobs_processed_total",
			Help:      "Export jobs handled, by outcome (done, error, skipped).",
		}, []string{"outcome"}),
		JobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "traxyard",
			Subsystem: "export",
			Name:      "jobs_running",
			Help:      "Export jobs currently being processed.",
		}),
		RowsExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "traxyard",
			Subsystem: "export",
			Name:      "rows_exported_total",
			Help:      "Rows written into export artifacts.",
		}),
		Checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "traxyard",
			Subsystem: "export",
			Name:      "status_checkpoints_total",
			Help:      "Status record writes made while jobs run.",
		}),
		ExportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "traxyard",
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Wall time per completed export, by artifact format.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"format"}),
	}
}
