// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntityWritesTotal tracks entity mutations by operation
	EntityWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "entities",
			Name:      "writes_total",
			Help:      "Total number of entity writes by operation",
		},
		[]string{"domain_id", "operation"},
	)

	// RelationshipWritesTotal tracks relationship mutations by operation
	RelationshipWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "relationships",
			Name:      "writes_total",
			Help:      "Total number of relationship writes by operation",
		},
		[]string{"domain_id", "operation"},
	)

	// TraversalRequestsTotal tracks graph traversal requests
	TraversalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "traversal",
			Name:      "requests_total",
			Help:      "Total number of traversal requests by operation",
		},
		[]string{"operation"},
	)

	// IntegrityIssuesFound tracks issues detected by check runs
	IntegrityIssuesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "integrity",
			Name:      "issues_found_total",
			Help:      "Total number of integrity issues detected by type",
		},
		[]string{"domain_id", "issue_type"},
	)

	// IntegrityRepairsTotal tracks repairs applied by fix runs
	IntegrityRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "integrity",
			Name:      "repairs_total",
			Help:      "Total number of integrity repairs by type and status",
		},
		[]string{"domain_id", "issue_type", "status"},
	)

	// IntegrityRunsTotal tracks check/fix passes
	IntegrityRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "integrity",
			Name:      "runs_total",
			Help:      "Total number of integrity passes by operation and status",
		},
		[]string{"operation", "status"},
	)

	// EventsPublishedTotal tracks lifecycle events published to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// EventsConsumedTotal tracks events consumed from Kafka
	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Total number of events consumed by type and status",
		},
		[]string{"event_type", "status"},
	)

	// GraphProjectionsTotal tracks writes mirrored into the graph database
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of graph projection writes by operation and status",
		},
		[]string{"operation", "status"},
	)
)
