package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveProbes counts active-node probe results by outcome (active, standby, unknown).
	ActiveProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnctl_ha_active_probes_total",
			Help: "Active NameNode probe results by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveProbeRounds counts individual probe rounds.
	ActiveProbeRounds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nnctl_ha_active_probe_rounds_total",
			Help: "Total number of local/peer probe rounds",
		},
	)

	// IsActive reports whether the last probe found this NameNode active (1) or not (0).
	IsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nnctl_ha_is_active",
			Help: "Whether the last probe found this NameNode active",
		},
	)

	// BootstrapAttempts counts standby bootstrap command invocations.
	BootstrapAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nnctl_ha_bootstrap_attempts_total",
			Help: "Total number of bootstrapStandby invocations",
		},
	)

	// BootstrapResults counts standby bootstrap outcomes.
	BootstrapResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nnctl_ha_bootstrap_results_total",
			Help: "Standby bootstrap outcomes",
		},
		[]string{"outcome"},
	)
)

func registerHAMetrics() error {
	return register(
		ActiveProbes,
		ActiveProbeRounds,
		IsActive,
		BootstrapAttempts,
		BootstrapResults,
	)
}
