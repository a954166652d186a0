// Package monitoring exposes prometheus instrumentation for the pipeline.
// Dropped-row counts are a deliberate policy (join misses are accepted data
// loss) and must stay observable rather than truly silent.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed counts raw input rows consumed per stage.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aadhaarpulse",
		Name:      "rows_processed_total",
		Help:      "Raw input rows consumed, labeled by pipeline stage.",
	}, []string{"stage"})

	// RowsDropped counts rows dropped on join miss or parse failure.
	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aadhaarpulse",
		Name:      "rows_dropped_total",
		Help:      "Rows dropped by a stage, labeled by stage and reason.",
	}, []string{"stage", "reason"})

	// AnomalousNodeDays counts (date, source district) observations the
	// detector flagged.
	AnomalousNodeDays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aadhaarpulse",
		Name:      "anomalous_node_days_total",
		Help:      "Node-days flagged anomalous by the detector.",
	})
)
