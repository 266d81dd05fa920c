// Package metrics exposes Prometheus counters for the processing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DocumentsProcessed counts parsed documents by detected family.
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundsheet",
		Name:      "documents_processed_total",
		Help:      "Documents parsed, labelled by detected family.",
	}, []string{"family"})

	// RowsExtracted counts rows emitted by the parsers.
	RowsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundsheet",
		Name:      "rows_extracted_total",
		Help:      "Rows extracted from documents, labelled by family.",
	}, []string{"family"})

	// Summaries counts AI summarization attempts by outcome.
	Summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundsheet",
		Name:      "summaries_total",
		Help:      "AI summary attempts, labelled ok, empty or skipped.",
	}, []string{"outcome"})

	// ProcessFailures counts batch-level processing failures by reason.
	ProcessFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundsheet",
		Name:      "process_failures_total",
		Help:      "Failed processing requests, labelled by reason.",
	}, []string{"reason"})

	// OutputsPruned counts expired output files removed by housekeeping.
	OutputsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundsheet",
		Name:      "outputs_pruned_total",
		Help:      "Expired output files removed by the cleanup job.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
