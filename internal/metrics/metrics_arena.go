package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArenaSlabsTotal tracks total number of entry slabs created
	ArenaSlabsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slist_arena_slabs_total",
			Help: "Total number of entry slabs allocated",
		},
	)

	// ArenaEntriesAllocatedTotal counts entries handed out by arenas
	ArenaEntriesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slist_arena_entries_allocated_total",
			Help: "Total number of entries allocated from arenas",
		},
	)

	// ArenaExhaustedTotal counts allocations refused because an arena was full
	ArenaExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slist_arena_exhausted_total",
			Help: "Total number of allocations rejected by a full arena",
		},
	)
)
