// Package metrics exposes the process's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PollTotal counts poll cycles per provider by outcome:
	// "changed", "not_modified", "unchanged", or "error".
	PollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statuswatch_poll_total",
			Help: "Poll cycles per provider by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// EventsPublished counts events published on the bus.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statuswatch_events_published_total",
			Help: "Status events published per provider and kind",
		},
		[]string{"provider", "kind"},
	)

	// EventsDropped counts events evicted from subscriber queues.
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statuswatch_events_dropped_total",
			Help: "Events dropped due to subscriber backpressure",
		},
	)

	// Subscribers tracks the number of registered bus subscribers.
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "statuswatch_subscribers",
			Help: "Currently registered event bus subscribers",
		},
	)

	// ProviderStatus reports each provider's rolled-up status as the
	// severity rank used internally (0 unknown .. 4 major_outage).
	ProviderStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "statuswatch_provider_status",
			Help: "Current provider status rank (0 unknown, 1 operational, 2 degraded, 3 partial_outage, 4 major_outage)",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(PollTotal)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(ProviderStatus)
}
