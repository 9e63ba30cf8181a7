package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, exposed on /metrics.
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviepitch_runs_total",
		Help: "Pipeline runs by terminal status.",
	}, []string{"status"})

	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviepitch_steps_total",
		Help: "Agent step executions by agent and status.",
	}, []string{"agent", "status"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moviepitch_step_duration_seconds",
		Help:    "Wall time of one agent step including the gateway round trip.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"agent"})

	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviepitch_persistence_failures_total",
		Help: "Question/answer/state writes that failed and were skipped.",
	})

	WikipediaLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviepitch_wikipedia_lookups_total",
		Help: "Wikipedia lookups by result (hit, miss, error).",
	}, []string{"result"})
)
