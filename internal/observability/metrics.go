package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "sessions_created_total", Help: "Sessions created"},
		[]string{"request_type"},
	)
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "session_transitions_total", Help: "Session state transitions"},
		[]string{"to"},
	)
	DriversNotified = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "drivers_notified_total", Help: "Drivers notified by discovery waves"},
		[]string{"wave"},
	)
	OffersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "offers_submitted_total", Help: "Offers submitted by drivers"},
		[]string{"type"},
	)
	Selections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "selections_total", Help: "Offer selection attempts"},
		[]string{"outcome"},
	)
	SelectionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ridebroker",
			Name:      "selection_latency_seconds",
			Help:      "Selection commit latency",
			Buckets:   prometheus.DefBuckets,
		},
	)
	PushFailures = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ridebroker", Name: "push_failures_total", Help: "Best-effort push deliveries that failed"},
	)
)
