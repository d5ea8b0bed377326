package worker

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for command results.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlhost_worker_commands_total",
			Help: "Total number of commands handled by workers.",
		},
		[]string{"command", "result"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gqlhost_worker_command_duration_seconds",
			Help:    "Time spent in the engine per command, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlhost_worker_queue_depth",
			Help: "Commands waiting in the most recently drained worker queue.",
		},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlhost_active_subscriptions",
			Help: "Number of subscriptions registered across all workers.",
		},
	)

	payloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlhost_subscription_payloads_total",
			Help: "Total number of payloads delivered to subscription streams.",
		},
	)

	pumpDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlhost_pump_messages_dispatched_total",
			Help: "Total number of platform messages dispatched by workers.",
		},
	)

	panicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlhost_worker_panics_total",
			Help: "Total number of workers terminated by a panic.",
		},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal)
	prometheus.MustRegister(commandDuration)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(activeSubscriptions)
	prometheus.MustRegister(payloadsTotal)
	prometheus.MustRegister(pumpDispatchedTotal)
	prometheus.MustRegister(panicsTotal)

	for _, name := range []string{"stop", "parse_query", "discard_query", "subscribe", "unsubscribe"} {
		commandsTotal.WithLabelValues(name, resultOK)
		commandsTotal.WithLabelValues(name, resultError)
	}
}
