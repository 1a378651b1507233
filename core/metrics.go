package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "myschool",
		Name:      "imported_rows_total",
		Help:      "Rows processed by bulk imports, by collection and outcome.",
	}, []string{"collection", "outcome"})
)

// Observe records the outcome of an import into coll in the metrics.
func (r ImportReport) Observe(coll Collection) {
	importedRows.WithLabelValues(string(coll), "succeeded").Add(float64(r.Succeeded))
	importedRows.WithLabelValues(string(coll), "failed").Add(float64(len(r.Failures)))
}
