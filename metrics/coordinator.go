package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoordinatorMetrics holds all proof-coordination metrics.
type CoordinatorMetrics struct {
	registry *ComponentRegistry

	JobsCreatedTotal     prometheus.Counter
	JobsTerminatedTotal  *prometheus.CounterVec
	JobsPrunedTotal      prometheus.Counter
	ActiveJob            prometheus.Gauge
	ProverPollsTotal     *prometheus.CounterVec
	ProverRecoveryTotal  prometheus.Counter
	ProverSubmitLatency  prometheus.Histogram
	ClaimsSubmittedTotal *prometheus.CounterVec
	JobAgeSeconds        prometheus.Histogram
}

// NewCoordinatorMetrics registers the coordinator's metric set.
func NewCoordinatorMetrics() *CoordinatorMetrics {
	reg := NewComponentRegistry("proofgate", "coordinator")

	return &CoordinatorMetrics{
		registry: reg,

		JobsCreatedTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "jobs_created_total",
			Help: "Total number of proof jobs accepted.",
		}),

		JobsTerminatedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_terminated_total",
			Help: "Total number of proof jobs reaching a terminal status.",
		}, []string{"status"}),

		JobsPrunedTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "jobs_pruned_total",
			Help: "Total number of terminal job records evicted by pruning.",
		}),

		ActiveJob: reg.NewGauge(prometheus.GaugeOpts{
			Name: "active_job",
			Help: "1 if a job currently holds the singleton slot, else 0.",
		}),

		ProverPollsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "prover_polls_total",
			Help: "Total number of prover poll outcomes by tag.",
		}, []string{"outcome"}),

		ProverRecoveryTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "prover_recovery_total",
			Help: "Total number of lost-prover-job recovery re-submits.",
		}),

		ProverSubmitLatency: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "prover_submit_latency_seconds",
			Help:    "Latency of prover submit calls.",
			Buckets: LatencyBuckets,
		}),

		ClaimsSubmittedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_submitted_total",
			Help: "Total number of claim submissions by outcome.",
		}, []string{"outcome"}),

		JobAgeSeconds: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "job_age_seconds",
			Help:    "Age of jobs at the time they reach a terminal status.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}
