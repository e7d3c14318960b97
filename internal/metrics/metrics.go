// Package metrics holds the Prometheus collectors shared by the arena,
// lookaside pool, rate limiter and stress tool. Collectors register with the
// default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitRequestsTotal counts rate limiter decisions
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slist_rate_limit_requests_total",
			Help: "Total number of operations handled by the rate limiter",
		},
		[]string{"status"}, // "allowed", "throttled"
	)
)
