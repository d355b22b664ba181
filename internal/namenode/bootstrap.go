package namenode

import (
	"context"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/logging"
	"github.com/yaroslav/nnctl/internal/metrics"
	"github.com/yaroslav/nnctl/internal/runner"
)

const (
	// BootstrapAttempts bounds bootstrapStandby invocations. There is no delay between them.
	BootstrapAttempts = 50

	// exitAlreadyBootstrapped is returned by bootstrapStandby when the
	// standby already holds the shared image.
	exitAlreadyBootstrapped = 5
)

// Bootstrapper copies the active NameNode's metadata onto a standby.
type Bootstrapper struct {
	cfg    *config.Config
	runner runner.Runner
	client hdfsClient
	logger *zap.Logger
	sleep  runner.Sleeper
}

// NewBootstrapper creates a bootstrapper that runs the given hdfs binary.
func NewBootstrapper(cfg *config.Config, r runner.Runner, hdfsBinary string, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		cfg:    cfg,
		runner: r,
		client: hdfsClient{cfg: cfg, binary: hdfsBinary},
		logger: logger,
		sleep:  runner.Sleep,
	}
}

// BootstrapStandby runs `namenode -bootstrapStandby` until it succeeds.
//
// Exit 0 and exit 5 (already bootstrapped) are success. During the initial
// start -force is added so that a half-finished earlier attempt is redone.
// A command that cannot be executed at all ends the loop with false.
func (b *Bootstrapper) BootstrapStandby(ctx context.Context, phase Phase) bool {
	args := []string{"namenode", "-bootstrapStandby", "-nonInteractive"}
	if phase == PhaseInitialStart {
		args = append(args, "-force")
	}
	cmd := b.client.command(args...)
	b.logger.Info("bootstrapping standby NameNode", zap.String(logging.FieldCommand, cmd.String()))

	attempt := 0
	res, _, err := runner.Retry(ctx, b.runner, cmd, runner.Policy{Tries: BootstrapAttempts}, b.sleep, func(res runner.Result) bool {
		attempt++
		metrics.BootstrapAttempts.Inc()
		switch res.ExitCode {
		case 0, exitAlreadyBootstrapped:
			return true
		}
		b.logger.Warn("bootstrap standby NameNode failed, will retry",
			zap.Int(logging.FieldAttempt, attempt),
			zap.Int("max_attempts", BootstrapAttempts),
			zap.Int(logging.FieldExitCode, res.ExitCode))
		return false
	})
	if err != nil {
		b.logger.Error("bootstrap standby NameNode aborted", zap.Error(err))
		metrics.BootstrapResults.WithLabelValues("error").Inc()
		return false
	}

	switch res.ExitCode {
	case 0:
		b.logger.Info("standby NameNode bootstrapped", zap.Int(logging.FieldAttempt, attempt))
		metrics.BootstrapResults.WithLabelValues("bootstrapped").Inc()
		return true
	case exitAlreadyBootstrapped:
		b.logger.Info("standby NameNode already bootstrapped", zap.Int(logging.FieldAttempt, attempt))
		metrics.BootstrapResults.WithLabelValues("already_bootstrapped").Inc()
		return true
	}

	b.logger.Error("standby NameNode bootstrap exhausted its attempts",
		zap.Int("max_attempts", BootstrapAttempts),
		zap.Int(logging.FieldExitCode, res.ExitCode))
	metrics.BootstrapResults.WithLabelValues("exhausted").Inc()
	return false
}
