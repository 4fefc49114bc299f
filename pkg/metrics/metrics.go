// Package metrics exports ingestion run counters in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion holds the counters one pipeline run increments.
type Ingestion struct {
	registry *prometheus.Registry

	WorkUnitsProduced    prometheus.Counter
	RecordsEmitted       prometheus.Counter
	EmissionFailures     prometheus.Counter
	ValidationWarnings   prometheus.Counter
	StaleEntitiesRemoved prometheus.Counter
	CheckpointCommits    prometheus.Counter
}

// NewIngestion creates the counter set on a private registry.
func NewIngestion() *Ingestion {
	registry := prometheus.NewRegistry()
	m := &Ingestion{
		registry: registry,
		WorkUnitsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "workunits_produced_total",
			Help:      "Work units produced by the source",
		}),
		RecordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "records_emitted_total",
			Help:      "Records accepted by the transport",
		}),
		EmissionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "emission_failures_total",
			Help:      "Records rejected by the transport",
		}),
		ValidationWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "validation_warnings_total",
			Help:      "Work units downgraded to warnings",
		}),
		StaleEntitiesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "stale_entities_removed_total",
			Help:      "Entities soft-deleted by the stale entity differ",
		}),
		CheckpointCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lodestar",
			Name:      "checkpoint_commits_total",
			Help:      "Checkpoints committed",
		}),
	}
	registry.MustRegister(
		m.WorkUnitsProduced,
		m.RecordsEmitted,
		m.EmissionFailures,
		m.ValidationWarnings,
		m.StaleEntitiesRemoved,
		m.CheckpointCommits,
	)
	return m
}

// Registry exposes the private registry for scraping.
func (m *Ingestion) Registry() *prometheus.Registry {
	return m.registry
}
