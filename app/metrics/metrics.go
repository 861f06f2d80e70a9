// Package metrics defines the Prometheus instruments for the dispatch engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue events consumed, partitioned by action and outcome
	// (handled, failed, dropped, duplicate)
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_events_consumed_total",
			Help: "Total number of queue events consumed",
		},
		[]string{"action", "outcome"},
	)

	// Logical broadcasts initiated, partitioned by message type and test flag
	MessagesInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_messages_initiated_total",
			Help: "Total number of logical broadcasts initiated",
		},
		[]string{"type", "test"},
	)

	// Per-recipient send attempts, partitioned by result
	// (sent, failed, invalid_destination)
	SendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heimdall_send_attempts_total",
			Help: "Total number of per-recipient provider send attempts",
		},
		[]string{"result"},
	)

	// Elapsed time between a broadcast's dispatch timestamp and the
	// provider's status callback, partitioned by reported status
	DeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heimdall_delivery_latency_seconds",
			Help:    "Latency from dispatch to provider status callback",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 3600},
		},
		[]string{"status"},
	)

	// Escalation alerts raised for sustained per-member delivery failure
	EscalationsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heimdall_escalations_raised_total",
			Help: "Total number of delivery-failure escalation alerts raised",
		},
	)
)

const (
	OutcomeHandled   = "handled"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
	OutcomeDuplicate = "duplicate"

	ResultSent               = "sent"
	ResultFailed             = "failed"
	ResultInvalidDestination = "invalid_destination"
)
