package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions counts request state-machine transitions by edge.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carrymarket",
		Name:      "request_transitions_total",
		Help:      "Request state transitions by from/to status.",
	}, []string{"from", "to"})

	// ProcessorEvents counts inbound payment processor webhook events.
	ProcessorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carrymarket",
		Name:      "processor_events_total",
		Help:      "Payment processor webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// CapacityRejections counts offers refused for lack of listing capacity.
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carrymarket",
		Name:      "capacity_rejections_total",
		Help:      "Offer attempts rejected with insufficient capacity.",
	})
)
