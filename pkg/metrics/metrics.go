// Package metrics exposes Prometheus instrumentation for the naming
// and storage servers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NamingOperations counts client service calls by operation and
	// outcome ("ok" or "error").
	NamingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "naming",
		Name:      "operations_total",
		Help:      "Client service operations handled by the naming server.",
	}, []string{"operation", "outcome"})

	// Registrations counts storage server registration attempts.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "naming",
		Name:      "registrations_total",
		Help:      "Storage server registrations by outcome.",
	}, []string{"outcome"})

	// Replications counts replication tasks by outcome ("copied",
	// "skipped", "failed").
	Replications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "naming",
		Name:      "replications_total",
		Help:      "Replication tasks by outcome.",
	}, []string{"outcome"})

	// Invalidations counts invalidation tasks by outcome ("pruned",
	// "skipped").
	Invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "naming",
		Name:      "invalidations_total",
		Help:      "Replica invalidation tasks by outcome.",
	}, []string{"outcome"})

	// StorageBytesRead counts bytes served by storage data endpoints.
	StorageBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "storage",
		Name:      "bytes_read_total",
		Help:      "Bytes read from storage servers.",
	})

	// StorageBytesWritten counts bytes accepted by storage data
	// endpoints.
	StorageBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meshfs",
		Subsystem: "storage",
		Name:      "bytes_written_total",
		Help:      "Bytes written to storage servers.",
	})
)
