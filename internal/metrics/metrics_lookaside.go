package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookasideRequestsTotal counts Get calls by result
	LookasideRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slist_lookaside_requests_total",
			Help: "Total number of lookaside Get requests",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	// LookasideReturnsTotal counts entries given back to lookaside lists
	LookasideReturnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slist_lookaside_returns_total",
			Help: "Total number of entries returned to lookaside lists",
		},
	)
)
