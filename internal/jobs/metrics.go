package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deferred_jobs_enqueued_total",
			Help: "Total number of deferred jobs enqueued.",
		},
		[]string{"job"},
	)

	// outcome is one of ok, failed, dead
	jobsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deferred_jobs_consumed_total",
			Help: "Total number of deferred job consumptions by outcome.",
		},
		[]string{"job", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(jobsEnqueued, jobsConsumed)
}
