package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/agent"
)

var agentListen string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Serve lifecycle actions over a local HTTP API",
	Long: `Run an HTTP agent that accepts lifecycle actions from a cluster manager.

Endpoints:
  POST /v1/actions/:action   run configure, start, stop, status, decommission or format
  GET  /v1/history           list recorded actions
  GET  /health/live          liveness probe
  GET  /metrics              Prometheus metrics

Actions are serialized: at most one runs at a time on this host.
The agent stops gracefully on SIGTERM/SIGINT.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&agentListen, "listen", "",
		"Listen address (default from agent.listen in the config)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	listen := a.cfg.Agent.Listen
	if agentListen != "" {
		listen = agentListen
	}

	a.logger.Info("nnctl agent starting",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("hostname", a.cfg.Hostname))

	routerCfg := &agent.RouterConfig{
		Orchestrator: a.orch,
		Logger:       a.logger.Named("agent"),
		Hostname:     a.cfg.Hostname,
		ActionRate:   a.cfg.Agent.ActionRate,
		ActionBurst:  a.cfg.Agent.ActionBurst,
	}
	if a.journal != nil {
		routerCfg.Journal = a.journal
	}

	return agent.Serve(cmd.Context(), listen, agent.SetupRouter(routerCfg), a.logger)
}
