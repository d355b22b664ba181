package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActionsTotal counts orchestrator actions by action and result.
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnctl_actions_total",
			Help: "Total number of lifecycle actions by result",
		},
		[]string{"action", "result"},
	)

	// ActionDuration measures how long each action took.
	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nnctl_action_duration_seconds",
			Help: "Lifecycle action duration in seconds",
			// Safe-mode waits can take up to ~11 minutes.
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
		},
		[]string{"action"},
	)

	// FormatDecisions counts format engine outcomes by the rule that decided them.
	FormatDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnctl_format_decisions_total",
			Help: "Format decision engine outcomes by deciding rule",
		},
		[]string{"rule"},
	)

	// SafeModePolls counts safe-mode queries.
	SafeModePolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nnctl_safemode_polls_total",
			Help: "Total number of safe mode queries issued",
		},
	)

	// SafeModeWaits counts safe-mode waits by outcome reason.
	SafeModeWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnctl_safemode_waits_total",
			Help: "Safe mode waits by outcome",
		},
		[]string{"reason"},
	)
)

func registerLifecycleMetrics() error {
	return register(
		ActionsTotal,
		ActionDuration,
		FormatDecisions,
		SafeModePolls,
		SafeModeWaits,
	)
}
