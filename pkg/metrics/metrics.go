package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	DocumentsMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "integration_maintenance", Name: "documents_matched_total", Help: "Documents matched by the fix update."},
		[]string{"collection"},
	)
	DocumentsModified = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "integration_maintenance", Name: "documents_modified_total", Help: "Documents modified by the fix update."},
		[]string{"collection"},
	)
	NonConformingRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "integration_maintenance", Name: "non_conforming_documents", Help: "Documents still failing validation after the last pass."},
		[]string{"collection"},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "integration_maintenance", Name: "runs_total", Help: "Fix runs by outcome (fixed, not_fixed, dry_run, error)."},
		[]string{"collection", "outcome"},
	)
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "integration_maintenance", Name: "run_duration_seconds", Help: "Wall time of a fix run.", Buckets: prometheus.DefBuckets},
		[]string{"collection"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsMatched)
	reg.MustRegister(DocumentsModified)
	reg.MustRegister(NonConformingRemaining)
	reg.MustRegister(Runs)
	reg.MustRegister(RunDuration)
}

// Push sends everything gathered by g to a Prometheus Pushgateway. Batch jobs have no
// scrape endpoint, so this is how a run's numbers reach Prometheus.
func Push(url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
