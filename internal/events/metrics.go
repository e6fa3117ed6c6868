package events

import "github.com/prometheus/client_golang/prometheus"

// deliveries counts inbound deliveries by kind and outcome
// (handled, duplicate, rejected, unrouted, error).
var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "slack_deliveries_total",
		Help: "Total number of inbound Slack deliveries by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(deliveries)
}
