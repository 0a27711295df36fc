package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeUnsynced  = "unsynced"
)

var (
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_mutations_total",
			Help: "Optimistic mutations by collection and final sync outcome",
		},
		[]string{"collection", "outcome"},
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "hirewire_mutation_duration_seconds",
			Help: "Time spent persisting an optimistic mutation",
		},
		[]string{"collection"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_notifications_total",
			Help: "Notifications shown to the user by severity",
		},
		[]string{"severity"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_uploads_total",
			Help: "Capture upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_ai_requests_total",
			Help: "AI analysis requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_cache_lookups_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	CreditsPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hirewire_credits_purchased_total",
			Help: "Credit units confirmed per tier",
		},
		[]string{"tier"},
	)
)
