// Package metrics exposes prometheus collectors for the correlators.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quorum_indexer"

var (
	RecordsEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_enriched_total",
		Help:      "Records whose quorum enrichment was written.",
	}, []string{"correlator"})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Records skipped because their L1 counterpart is not observable yet.",
	}, []string{"correlator"})

	Backoffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backoffs_total",
		Help:      "Transient failures that put a correlator to sleep, by phase.",
	}, []string{"correlator", "phase"})

	Fatal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fatal_total",
		Help:      "Runs stopped by a malformed upstream record.",
	}, []string{"correlator"})

	CheckpointHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "checkpoint",
		Help:      "Persisted high-water mark: L1 height for blocks, epoch for elections.",
	}, []string{"correlator"})

	VotedRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_voted_ratio",
		Help:      "voted_weight / eligible_weight of the most recently enriched record.",
	}, []string{"correlator"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
