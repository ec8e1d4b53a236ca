// Package metrics holds the Prometheus collectors of a replica. They register
// with the default registry, which the /metrics endpoint serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arbor"

var (
	// Mutations counts local index mutations.
	// Labels: op (insert, delete, rename, move, copy, reorder), result (ok, error)
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "mutations_total",
			Help:      "Local index mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	// MutationDuration measures the time from lock acquisition to broadcast.
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "mutation_duration_seconds",
			Help:      "Duration of local index mutations including lock and broadcast",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)

	// Nodes reports the node count of each family tree.
	Nodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "nodes",
			Help:      "Nodes per family tree",
		},
		[]string{"family"},
	)

	// DeltasPublished counts deltas handed to each transport.
	// Labels: transport (sse, spool, peer), result (ok, error)
	DeltasPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "published_total",
			Help:      "Deltas published by transport and result",
		},
		[]string{"transport", "result"},
	)

	// DeltasDelivered counts deltas an outbox handed to its transport.
	// Labels: transport (spool, peer), result (ok, error)
	DeltasDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "delivered_total",
			Help:      "Deltas delivered from outboxes by transport and result",
		},
		[]string{"transport", "result"},
	)

	// DeltasReplayed counts remote deltas replayed on this replica.
	// Labels: op, result (ok, error, duplicate)
	DeltasReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "replayed_total",
			Help:      "Remote deltas replayed by operation and result",
		},
		[]string{"op", "result"},
	)

	// CatalogWrites counts catalog persistence of local mutations.
	// Labels: op, result (ok, error)
	CatalogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "writes_total",
			Help:      "Catalog writes of local mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	// QueueDepth is the number of jobs waiting for the index owner loop.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "queue_depth",
			Help:      "Jobs waiting for the index owner loop",
		},
	)
)

// Result maps an error to the result label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
