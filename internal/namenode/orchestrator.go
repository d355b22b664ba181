// Package namenode drives the lifecycle of an HDFS NameNode host: configure,
// start, stop, status, decommission and format, with HA coordination and
// stack upgrade handling.
package namenode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/history"
	"github.com/yaroslav/nnctl/internal/logging"
	"github.com/yaroslav/nnctl/internal/metrics"
	"github.com/yaroslav/nnctl/internal/platform"
	"github.com/yaroslav/nnctl/internal/runner"
	"github.com/yaroslav/nnctl/internal/supervisor"
)

// Journal records finished actions.
type Journal interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options holds optional orchestrator collaborators.
type Options struct {
	// Sleep replaces the real sleeper in probe and safe mode loops.
	Sleep runner.Sleeper

	// Audit prepares the audit plugin. Defaults to PluginScript.
	Audit AuditIntegration

	// Journal, when set, receives one entry per Run.
	Journal Journal

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// LookupIDs resolves file owners. Defaults to supervisor.LookupIDs.
	LookupIDs func(userName, groupName string) (int, int, error)
}

// Orchestrator runs lifecycle actions against one NameNode host.
// Its configuration is fixed at construction.
type Orchestrator struct {
	cfg        *config.Config
	runner     runner.Runner
	supervisor supervisor.Supervisor
	paths      platform.PathConventions
	fs         afero.Fs
	logger     *zap.Logger

	sleep     runner.Sleeper
	audit     AuditIntegration
	journal   Journal
	now       func() time.Time
	lookupIDs func(userName, groupName string) (int, int, error)
}

// New creates an orchestrator.
//
// Parameters:
//   - cfg: Validated host configuration, never modified afterwards
//   - p: Platform capabilities (runner, supervisor, paths, filesystem)
//   - logger: Zap logger for structured logging
//   - opts: Optional collaborators; zero values select production defaults
//
// Returns:
//   - Ready Orchestrator
func New(cfg *config.Config, p *platform.Platform, logger *zap.Logger, opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		runner:     p.Runner,
		supervisor: p.Supervisor,
		paths:      p.Paths,
		fs:         p.FS,
		logger:     logger,
		sleep:      opts.Sleep,
		audit:      opts.Audit,
		journal:    opts.Journal,
		now:        opts.Now,
		lookupIDs:  opts.LookupIDs,
	}
	if o.sleep == nil {
		o.sleep = runner.Sleep
	}
	if o.audit == nil {
		o.audit = NewPluginScript(cfg, p.Runner, logger.Named("audit"))
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.lookupIDs == nil {
		o.lookupIDs = supervisor.LookupIDs
	}
	return o
}

// Validate checks a request without touching the host.
func (o *Orchestrator) Validate(req Request) error {
	if req.Action == "" {
		return fmt.Errorf("%w: action is required", ErrConfiguration)
	}
	if _, err := ParseAction(string(req.Action)); err != nil {
		return err
	}
	if (req.Action == ActionStart || req.Action == ActionStop) && req.HDFSBinary == "" {
		return fmt.Errorf("%w: hdfs binary is required for %s", ErrConfiguration, req.Action)
	}
	if req.ForceFormat && req.Action != ActionFormat {
		return fmt.Errorf("%w: force is only valid for %s", ErrConfiguration, ActionFormat)
	}
	return nil
}

// Run executes one action. Validation happens before any side effect.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	return o.RunWithID(ctx, uuid.NewString(), req)
}

// RunWithID is Run with a caller-chosen invocation id.
func (o *Orchestrator) RunWithID(ctx context.Context, invocationID string, req Request) error {
	if err := o.Validate(req); err != nil {
		metrics.ActionsTotal.WithLabelValues(string(req.Action), "rejected").Inc()
		return err
	}

	ctx, logger := logging.ForInvocation(ctx, o.logger, invocationID, string(req.Action), o.cfg.Hostname)

	started := o.now()
	logger.Info("action started",
		zap.String("upgrade_type", req.Upgrade.Type.String()),
		zap.String("upgrade_direction", req.Upgrade.Direction.String()),
		zap.String("phase", req.Upgrade.Phase.String()))

	err := o.dispatch(ctx, req)

	elapsed := o.now().Sub(started)
	result := history.ResultSuccess
	if err != nil {
		result = history.ResultFailure
		logger.Error("action failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		logger.Info("action finished", zap.Duration("elapsed", elapsed))
	}
	metrics.ActionsTotal.WithLabelValues(string(req.Action), result).Inc()
	metrics.ActionDuration.WithLabelValues(string(req.Action)).Observe(elapsed.Seconds())

	o.record(ctx, logger, invocationID, req, started, elapsed, err)
	return err
}

func (o *Orchestrator) dispatch(ctx context.Context, req Request) error {
	switch req.Action {
	case ActionConfigure:
		return o.configure(ctx)
	case ActionStart:
		return o.start(ctx, req)
	case ActionStop:
		return o.stop(ctx)
	case ActionStatus:
		return o.status(ctx)
	case ActionDecommission:
		return o.decommission(ctx, req)
	case ActionFormat:
		return o.formatEngine(ctx, o.binary(req)).Format(ctx, req.ForceFormat)
	}
	return fmt.Errorf("%w: unknown action %q", ErrConfiguration, req.Action)
}

// binary is the request's hdfs client, or the platform default.
func (o *Orchestrator) binary(req Request) string {
	if req.HDFSBinary != "" {
		return req.HDFSBinary
	}
	return o.paths.HDFSBinary()
}

// configure creates the name directories owned by the HDFS user.
func (o *Orchestrator) configure(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	for _, dir := range o.cfg.HDFS.NameDirs {
		if err := o.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create name directory %s: %w", dir, err)
		}
		if err := o.fs.Chmod(dir, 0o755); err != nil {
			return fmt.Errorf("failed to chmod name directory %s: %w", dir, err)
		}
		o.chownHDFS(logger, dir)
		logger.Info("name directory ready", zap.String("dir", dir))
	}
	return nil
}

func (o *Orchestrator) start(ctx context.Context, req Request) error {
	logger := logging.FromContext(ctx)
	binary := req.HDFSBinary
	up := req.Upgrade

	if err := o.audit.Setup(ctx, up); err != nil {
		return fmt.Errorf("failed to set up audit integration: %w", err)
	}

	if req.DoFormat && !o.cfg.Format.Disabled {
		if err := o.formatEngine(ctx, binary).Format(ctx, false); err != nil {
			return err
		}
	} else {
		logger.Info("formatting not requested or disabled",
			zap.Bool("do_format", req.DoFormat),
			zap.Bool("format_disabled", o.cfg.Format.Disabled))
	}

	if err := o.writeExcludeFile(logger); err != nil {
		return err
	}

	if o.cfg.IsStandbyHost() {
		if !o.bootstrapper(ctx, binary).BootstrapStandby(ctx, up.Phase) {
			return fmt.Errorf("could not bootstrap standby NameNode: %w", ErrBootstrapFailed)
		}
	}

	if up.Type == UpgradeRolling && o.cfg.HA.Enabled {
		if err := o.ensureZKFC(ctx, logger); err != nil {
			return err
		}
	}

	args := o.startOptions(ctx, up, logger)
	logger.Info("starting NameNode", zap.Strings("options", args))
	if err := o.supervisor.Start(ctx, supervisor.DaemonNamenode, supervisor.StartOptions{
		Args:         args,
		CreatePIDDir: true,
		CreateLogDir: true,
	}); err != nil {
		return fmt.Errorf("failed to start NameNode: %w", err)
	}

	if err := o.kinit(ctx); err != nil {
		return err
	}

	prober := o.prober(ctx, binary)
	var probed, active bool
	isActive := func() bool {
		if !probed {
			active, probed = prober.IsActive(ctx), true
		}
		return active
	}

	if wait, reason := o.shouldWaitForSafeModeOff(up, isActive); wait {
		logger.Info("waiting for NameNode to leave safe mode", zap.String("reason", reason))
		res := o.safeModeWaiter(ctx, binary).WaitOff(ctx)
		if res.Reason == SafeModeAborted && ctx.Err() != nil {
			return fmt.Errorf("safe mode wait interrupted: %w", ctx.Err())
		}
		if !res.Off {
			logger.Error("NameNode is still in safe mode, be careful with commands that need safe mode OFF",
				zap.Int(logging.FieldAttempt, res.Attempts),
				zap.String("reason", string(res.Reason)),
				zap.Error(res.Err))
		}
	} else {
		logger.Info("not waiting for safe mode", zap.String("reason", reason))
	}

	if o.isActiveForDirectories(up, isActive) {
		if err := o.createHDFSDirectories(ctx, prober.client, logger); err != nil {
			return err
		}
	} else {
		logger.Info("skipping HDFS directory creation on a non-active NameNode")
	}

	return nil
}

// startOptions maps the upgrade context to NameNode start flags.
func (o *Orchestrator) startOptions(ctx context.Context, up UpgradeContext, logger *zap.Logger) []string {
	switch up.Type {
	case UpgradeRolling:
	case UpgradeNonRolling:
		logger.Info("previous file system image check",
			zap.Bool("previous_image_present", o.formatEngine(ctx, "").PreviousImageExists()))
	default:
		return nil
	}

	if up.Direction == DirectionDowngrade {
		return []string{"-rollingUpgrade", "downgrade"}
	}
	return []string{"-rollingUpgrade", "started"}
}

// shouldWaitForSafeModeOff decides whether Start blocks on safe mode.
//
//	HA  | upgrade     | active | wait
//	no  | none/rolling|   -    | yes
//	yes | none        |  yes   | yes
//	yes | none        |  no    | no
//	yes | rolling     |   -    | yes
//	any | non-rolling |   -    | no
//
// isActive is consulted only for HA without an upgrade.
func (o *Orchestrator) shouldWaitForSafeModeOff(up UpgradeContext, isActive func() bool) (bool, string) {
	if up.Type == UpgradeNonRolling {
		return false, "staying in safe mode during a non-rolling upgrade since DataNodes are down"
	}
	if !o.cfg.HA.Enabled {
		return true, "HA is not enabled"
	}
	if up.Type == UpgradeRolling {
		return true, "HA is enabled during a rolling upgrade"
	}
	if isActive() {
		return true, "HA is enabled and this is the active NameNode"
	}
	return false, "HA is enabled and this is not the active NameNode"
}

// isActiveForDirectories is the predicate guarding HDFS directory creation.
// Both NameNodes are down during a non-rolling upgrade, so there is nothing to ask.
// isActive is shared with the safe-mode decision, so one Start probes at most once.
func (o *Orchestrator) isActiveForDirectories(up UpgradeContext, isActive func() bool) bool {
	if up.Type == UpgradeNonRolling {
		return false
	}
	if !o.cfg.HA.Enabled {
		return true
	}
	return isActive()
}

// ensureZKFC starts the failover controller if a rolling upgrade left it down.
func (o *Orchestrator) ensureZKFC(ctx context.Context, logger *zap.Logger) error {
	st, err := o.supervisor.Status(ctx, supervisor.DaemonZKFC)
	if err != nil {
		return fmt.Errorf("failed to check ZKFC: %w", err)
	}
	if st.Running {
		logger.Info("ZKFC already running", zap.Int("pid", st.PID))
		return nil
	}

	logger.Info("ZKFC is not running, starting it")
	if err := o.supervisor.Start(ctx, supervisor.DaemonZKFC, supervisor.StartOptions{
		CreatePIDDir: true,
		CreateLogDir: true,
	}); err != nil {
		return fmt.Errorf("failed to start ZKFC: %w", err)
	}
	return nil
}

// kinit obtains a Kerberos ticket for the HDFS user when security is enabled.
func (o *Orchestrator) kinit(ctx context.Context) error {
	if !o.cfg.Security.Enabled {
		return nil
	}
	cmd := runner.Command{
		Args: []string{o.cfg.Security.KinitPath, "-kt", o.cfg.Security.Keytab, o.cfg.Security.Principal},
		User: o.cfg.HDFS.User,
	}
	res, err := o.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to run kinit: %w", err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("kinit failed: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	return nil
}

func (o *Orchestrator) stop(ctx context.Context) error {
	if err := o.supervisor.Stop(ctx, supervisor.DaemonNamenode); err != nil {
		return fmt.Errorf("failed to stop NameNode: %w", err)
	}
	return nil
}

func (o *Orchestrator) status(ctx context.Context) error {
	st, err := o.supervisor.Status(ctx, supervisor.DaemonNamenode)
	if err != nil {
		return fmt.Errorf("failed to check NameNode status: %w", err)
	}
	if !st.Running {
		return fmt.Errorf("namenode: %w", ErrNotRunning)
	}
	logging.FromContext(ctx).Info("NameNode is running", zap.Int("pid", st.PID))
	return nil
}

func (o *Orchestrator) decommission(ctx context.Context, req Request) error {
	logger := logging.FromContext(ctx)
	if err := o.writeExcludeFile(logger); err != nil {
		return err
	}
	if o.cfg.Decommission.UpdateExcludeFileOnly {
		logger.Info("exclude file updated, skipping refreshNodes")
		return nil
	}

	if err := o.kinit(ctx); err != nil {
		return err
	}

	client := hdfsClient{cfg: o.cfg, binary: o.binary(req)}
	res, err := o.runner.Run(ctx, client.dfsadmin("-refreshNodes"))
	if err != nil {
		return fmt.Errorf("failed to refresh nodes: %w", err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("refreshNodes failed: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	logger.Info("NameNode refreshed its node lists", zap.String("fs", client.filesystem()))
	return nil
}

func (o *Orchestrator) record(ctx context.Context, logger *zap.Logger, id string, req Request, started time.Time, elapsed time.Duration, runErr error) {
	if o.journal == nil {
		return
	}
	e := history.Entry{
		InvocationID: id,
		Hostname:     o.cfg.Hostname,
		Action:       string(req.Action),
		UpgradeType:  req.Upgrade.Type.String(),
		Result:       history.ResultSuccess,
		StartedAt:    started,
		Duration:     elapsed,
	}
	if runErr != nil {
		e.Result = history.ResultFailure
		e.Error = runErr.Error()
	}
	// The journal must outlive a cancelled action.
	if err := o.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn("failed to record action history", zap.Error(err))
	}
}

// IsActive probes the HA state through the platform's hdfs binary.
func (o *Orchestrator) IsActive(ctx context.Context) bool {
	ctx = logging.WithLogger(ctx, o.logger)
	return o.prober(ctx, o.paths.HDFSBinary()).IsActive(ctx)
}

// BootstrapStandby runs the standby bootstrap on its own.
func (o *Orchestrator) BootstrapStandby(ctx context.Context, phase Phase) error {
	ctx = logging.WithLogger(ctx, o.logger)
	if !o.bootstrapper(ctx, o.paths.HDFSBinary()).BootstrapStandby(ctx, phase) {
		return ErrBootstrapFailed
	}
	return nil
}

// WaitSafeModeOff waits for safe mode to turn off on its own.
func (o *Orchestrator) WaitSafeModeOff(ctx context.Context) (SafeModeResult, error) {
	ctx = logging.WithLogger(ctx, o.logger)
	if err := o.kinit(ctx); err != nil {
		return SafeModeResult{}, err
	}
	res := o.safeModeWaiter(ctx, o.paths.HDFSBinary()).WaitOff(ctx)
	if res.Reason == SafeModeAborted {
		return res, res.Err
	}
	return res, nil
}

// IsFormatted runs the format decision on its own.
func (o *Orchestrator) IsFormatted(ctx context.Context) bool {
	ctx = logging.WithLogger(ctx, o.logger)
	return o.formatEngine(ctx, o.paths.HDFSBinary()).IsFormatted(ctx)
}

func (o *Orchestrator) prober(ctx context.Context, binary string) *Prober {
	p := NewProber(o.cfg, o.runner, binary, logging.FromContext(ctx).Named("prober"))
	p.sleep = o.sleep
	return p
}

func (o *Orchestrator) bootstrapper(ctx context.Context, binary string) *Bootstrapper {
	b := NewBootstrapper(o.cfg, o.runner, binary, logging.FromContext(ctx).Named("bootstrap"))
	b.sleep = o.sleep
	return b
}

func (o *Orchestrator) safeModeWaiter(ctx context.Context, binary string) *SafeModeWaiter {
	w := NewSafeModeWaiter(o.cfg, o.runner, binary, logging.FromContext(ctx).Named("safemode"))
	w.sleep = o.sleep
	return w
}

func (o *Orchestrator) formatEngine(ctx context.Context, binary string) *FormatEngine {
	return NewFormatEngine(o.cfg, o.fs, o.runner, binary, logging.FromContext(ctx).Named("format"))
}

// IsConfigurationError reports whether err was caused by bad input.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
