package namenode

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/runner"
)

// AuditIntegration prepares an access-control audit plugin before the
// NameNode starts.
type AuditIntegration interface {
	Setup(ctx context.Context, upgrade UpgradeContext) error
}

// PluginScript enables the audit plugin by running a configured script.
// It is a no-op when auditing is disabled or no script is configured.
type PluginScript struct {
	cfg    *config.Config
	runner runner.Runner
	logger *zap.Logger
}

// NewPluginScript creates the script-driven audit integration.
func NewPluginScript(cfg *config.Config, r runner.Runner, logger *zap.Logger) *PluginScript {
	return &PluginScript{cfg: cfg, runner: r, logger: logger}
}

// Setup runs the plugin script with the upgrade type in its environment.
func (p *PluginScript) Setup(ctx context.Context, upgrade UpgradeContext) error {
	if !p.cfg.Audit.Enabled || p.cfg.Audit.PluginScript == "" {
		return nil
	}

	cmd := runner.Command{
		Args: []string{p.cfg.Audit.PluginScript},
		Env: map[string]string{
			"HADOOP_CONF_DIR": p.cfg.HDFS.ConfDir,
			"UPGRADE_TYPE":    upgrade.Type.String(),
		},
	}
	res, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to run audit plugin script: %w", err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("audit plugin script failed: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	p.logger.Info("audit plugin enabled", zap.String("script", p.cfg.Audit.PluginScript))
	return nil
}
