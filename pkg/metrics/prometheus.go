package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modgate_decisions_total",
			Help: "Total number of review decisions by action and resulting status",
		},
		[]string{"action", "status"},
	)

	BulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modgate_bulk_items_total",
			Help: "Total number of bulk operation items by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modgate_notifications_total",
			Help: "Total number of notifications enqueued by event type",
		},
		[]string{"event_type"},
	)

	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modgate_escalations_total",
			Help: "Total number of SLA escalation notifications issued",
		},
	)

	VersionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modgate_version_conflicts_total",
			Help: "Total number of optimistic-lock conflicts retried by the engine",
		},
	)

	OutboxRelayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modgate_outbox_relayed_total",
			Help: "Total number of outbox events relayed to the broker by outcome",
		},
		[]string{"outcome"},
	)

	AdvanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modgate_advance_duration_seconds",
			Help:    "Step advancement latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)
