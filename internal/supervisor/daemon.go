package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/runner"
)

// DaemonScript drives hadoop-daemon.sh and tracks daemons through their pid files.
type DaemonScript struct {
	cfg    *config.Config
	runner runner.Runner
	fs     afero.Fs
	logger *zap.Logger

	// alive reports whether pid names a live process.
	alive func(pid int) bool
	// lookupIDs resolves a user and group to numeric ids.
	lookupIDs func(userName, groupName string) (int, int, error)
}

// NewDaemonScript creates a supervisor for POSIX hosts.
func NewDaemonScript(cfg *config.Config, r runner.Runner, fs afero.Fs, logger *zap.Logger) *DaemonScript {
	return &DaemonScript{
		cfg:       cfg,
		runner:    r,
		fs:        fs,
		logger:    logger,
		alive:     processAlive,
		lookupIDs: LookupIDs,
	}
}

// Start launches daemon unless its pid file already names a live process.
func (d *DaemonScript) Start(ctx context.Context, daemon string, opts StartOptions) error {
	if opts.CreatePIDDir {
		if err := d.ensureOwnedDir(d.cfg.HDFS.PIDDir); err != nil {
			return err
		}
	}
	if opts.CreateLogDir {
		if err := d.ensureOwnedDir(d.cfg.HDFS.LogDir); err != nil {
			return err
		}
	}

	st, err := d.Status(ctx, daemon)
	if err != nil {
		return err
	}
	if st.Running {
		d.logger.Info("daemon already running, skipping start",
			zap.String("daemon", daemon),
			zap.Int("pid", st.PID))
		return nil
	}

	// A stale pid file makes hadoop-daemon.sh refuse to start.
	if err := d.fs.Remove(d.cfg.PIDFile(daemon)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale pid file: %w", err)
	}

	args := append([]string{d.script(), "--config", d.cfg.HDFS.ConfDir, "start", daemon}, opts.Args...)
	return d.run(ctx, "start", daemon, args)
}

// Stop stops daemon and removes its pid file.
func (d *DaemonScript) Stop(ctx context.Context, daemon string) error {
	args := []string{d.script(), "--config", d.cfg.HDFS.ConfDir, "stop", daemon}
	if err := d.run(ctx, "stop", daemon, args); err != nil {
		return err
	}
	if err := d.fs.Remove(d.cfg.PIDFile(daemon)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// Status reads the pid file and checks the process.
func (d *DaemonScript) Status(_ context.Context, daemon string) (Status, error) {
	pidFile := d.cfg.PIDFile(daemon)
	data, err := afero.ReadFile(d.fs, pidFile)
	if os.IsNotExist(err) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read pid file %s: %w", pidFile, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		d.logger.Warn("ignoring malformed pid file", zap.String("pid_file", pidFile))
		return Status{}, nil
	}

	return Status{Running: d.alive(pid), PID: pid}, nil
}

func (d *DaemonScript) script() string {
	return path.Join(d.cfg.HDFS.SbinDir, "hadoop-daemon.sh")
}

func (d *DaemonScript) run(ctx context.Context, verb, daemon string, args []string) error {
	cmd := runner.Command{
		Args: args,
		User: d.cfg.HDFS.User,
		Env:  map[string]string{"HADOOP_LIBEXEC_DIR": path.Join(path.Dir(d.cfg.HDFS.SbinDir), "libexec")},
	}
	res, err := d.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, daemon, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to %s %s: exit code %d: %s", verb, daemon, res.ExitCode, strings.TrimSpace(res.Output))
	}
	d.logger.Info("daemon "+verb+" issued", zap.String("daemon", daemon))
	return nil
}

func (d *DaemonScript) ensureOwnedDir(dir string) error {
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	uid, gid, err := d.lookupIDs(d.cfg.HDFS.User, d.cfg.HDFS.Group)
	if err != nil {
		d.logger.Warn("cannot resolve daemon owner, leaving ownership unchanged",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}
	if err := d.fs.Chown(dir, uid, gid); err != nil {
		return fmt.Errorf("failed to chown %s: %w", dir, err)
	}
	return nil
}

// LookupIDs resolves a user and an optional group to numeric ids.
func LookupIDs(userName, groupName string) (int, int, error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gidStr := u.Gid
	if groupName != "" {
		if g, err := user.LookupGroup(groupName); err == nil {
			gidStr = g.Gid
		}
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
