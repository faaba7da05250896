package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitlab_events_total",
		Help: "Events accepted by the recorder, by event type.",
	}, []string{"type"})

	eventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitlab_events_rejected_total",
		Help: "Events rejected by state or membership checks.",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitlab_lifecycle_transitions_total",
		Help: "Successful lifecycle transitions, by action.",
	}, []string{"action"})

	allocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitlab_allocations_total",
		Help: "Traffic units allocated to a variant.",
	})
)
