package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StressOperationsTotal counts list operations issued by stress runs
	StressOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slist_stress_operations_total",
			Help: "Total number of list operations issued by stress runs",
		},
		[]string{"mode", "op"}, // op: push, push_batch, pop, flush
	)

	// StressRunsTotal counts finished stress runs
	StressRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slist_stress_runs_total",
			Help: "Total number of completed stress runs",
		},
		[]string{"mode", "result"}, // result: ok, failed
	)

	// StressDepth samples the list depth during stress runs
	StressDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slist_stress_depth",
			Help: "Most recently sampled list depth",
		},
	)

	// StressRunDurationSeconds measures how long stress runs take
	StressRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slist_stress_run_duration_seconds",
			Help:    "Wall time of stress runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)
)
