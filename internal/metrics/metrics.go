// Package metrics owns the prometheus collectors for the processor, the
// clustering engine, and ingestion. Collectors live on a private registry so
// tests and multiple processors in one binary never collide; a nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors.
type Metrics struct {
	registry *prometheus.Registry

	itemResults      *prometheus.CounterVec
	itemsForceFailed *prometheus.CounterVec
	itemsUnusable    *prometheus.CounterVec
	iterations       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	clusterOutcomes  *prometheus.CounterVec
	reclusterResults *prometheus.CounterVec
	ingestRecords    *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		itemResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_item_results_total",
				Help: "Dispatched items by workflow, state, and result status",
			},
			[]string{"workflow", "state", "status"},
		),
		itemsForceFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_items_force_failed_total",
				Help: "Items failed after exceeding the state update limit",
			},
			[]string{"workflow", "state"},
		),
		itemsUnusable: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_items_unusable_total",
				Help: "Items failed because their content could not be processed",
			},
			[]string{"workflow"},
		),
		iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_processor_iterations_total",
				Help: "Processor iterations by workflow and whether any item was dispatched",
			},
			[]string{"workflow", "kind"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentflow_dispatch_seconds",
				Help:    "Time spent dispatching one state batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"workflow", "state"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_runs_total",
				Help: "Processor runs by workflow and terminal status",
			},
			[]string{"workflow", "status"},
		),
		clusterOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_cluster_assignments_total",
				Help: "Cluster assignments by outcome (joined, created)",
			},
			[]string{"outcome"},
		),
		reclusterResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_recluster_results_total",
				Help: "Re-clustering pass results by outcome (merged, reset)",
			},
			[]string{"outcome"},
		),
		ingestRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentflow_ingest_items_total",
				Help: "Ingested items by outcome (inserted, duplicate, replaced)",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ItemResult counts one dispatched item result.
func (m *Metrics) ItemResult(workflow, state, status string) {
	if m == nil {
		return
	}
	m.itemResults.WithLabelValues(workflow, state, status).Inc()
}

// ItemForceFailed counts an item failed for exceeding its retry bound.
func (m *Metrics) ItemForceFailed(workflow, state string) {
	if m == nil {
		return
	}
	m.itemsForceFailed.WithLabelValues(workflow, state).Inc()
}

// ItemUnusable counts an item routed to failed for unusable content.
func (m *Metrics) ItemUnusable(workflow string) {
	if m == nil {
		return
	}
	m.itemsUnusable.WithLabelValues(workflow).Inc()
}

// Iteration counts a processor iteration; empty reports whether nothing was dispatched.
func (m *Metrics) Iteration(workflow string, empty bool) {
	if m == nil {
		return
	}
	kind := "active"
	if empty {
		kind = "empty"
	}
	m.iterations.WithLabelValues(workflow, kind).Inc()
}

// ObserveDispatch records the duration of one state batch.
func (m *Metrics) ObserveDispatch(workflow, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(workflow, state).Observe(d.Seconds())
}

// Run counts a finished run.
func (m *Metrics) Run(workflow, status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow, status).Inc()
}

// ClusterAssignment counts a clustering decision.
func (m *Metrics) ClusterAssignment(outcome string) {
	if m == nil {
		return
	}
	m.clusterOutcomes.WithLabelValues(outcome).Inc()
}

// ReclusterResult counts a re-clustering pass decision.
func (m *Metrics) ReclusterResult(outcome string) {
	if m == nil {
		return
	}
	m.reclusterResults.WithLabelValues(outcome).Inc()
}

// IngestItem counts an ingestion outcome.
func (m *Metrics) IngestItem(outcome string) {
	if m == nil {
		return
	}
	m.ingestRecords.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer returns an HTTP server exposing /metrics on addr.
func NewServer(addr string, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
