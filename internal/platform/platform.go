// Package platform selects the OS-specific capabilities the lifecycle core
// depends on. The choice is made once at startup; nothing downstream
// inspects the operating system.
package platform

import (
	"os/user"
	"path"
	"runtime"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/runner"
	"github.com/yaroslav/nnctl/internal/supervisor"
)

// PathConventions maps logical binaries to their on-disk location.
type PathConventions interface {
	// HDFSBinary is the hdfs client used when the caller does not supply one.
	HDFSBinary() string
}

// Platform is the capability set handed to the orchestrator.
type Platform struct {
	Name       string
	Runner     runner.Runner
	Supervisor supervisor.Supervisor
	Paths      PathConventions
	FS         afero.Fs
}

// Detect builds the platform for the running OS.
func Detect(cfg *config.Config, logger *zap.Logger) *Platform {
	if runtime.GOOS == "windows" {
		return Windows(cfg, logger)
	}
	return Unix(cfg, logger)
}

// Unix builds the POSIX platform: su-wrapped commands and hadoop-daemon.sh supervision.
func Unix(cfg *config.Config, logger *zap.Logger) *Platform {
	fs := afero.NewOsFs()
	r := runner.NewExecRunner(logger.Named("runner"), SuWrapper(currentUser()))
	return &Platform{
		Name:       "unix",
		Runner:     r,
		Supervisor: supervisor.NewDaemonScript(cfg, r, fs, logger.Named("supervisor")),
		Paths:      unixPaths{binDir: cfg.HDFS.BinDir},
		FS:         fs,
	}
}

// Windows builds the Windows platform: cmd.exe commands and service control.
func Windows(cfg *config.Config, logger *zap.Logger) *Platform {
	fs := afero.NewOsFs()
	r := runner.NewExecRunner(logger.Named("runner"), nil)
	return &Platform{
		Name:       "windows",
		Runner:     r,
		Supervisor: supervisor.NewServiceControl(r, logger.Named("supervisor")),
		Paths:      windowsPaths{binDir: cfg.HDFS.BinDir},
		FS:         fs,
	}
}

// SuWrapper runs commands through a login shell of the target user.
// When already running as that user the shell is used without su.
func SuWrapper(current string) runner.UserWrapper {
	return func(cmd runner.Command) []string {
		if cmd.User == current {
			return []string{"/bin/bash", "-c", cmd.Script()}
		}
		return []string{"su", cmd.User, "-l", "-s", "/bin/bash", "-c", cmd.Script()}
	}
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

type unixPaths struct {
	binDir string
}

func (p unixPaths) HDFSBinary() string {
	if p.binDir == "" {
		return "hdfs"
	}
	return path.Join(p.binDir, "hdfs")
}

type windowsPaths struct {
	binDir string
}

func (p windowsPaths) HDFSBinary() string {
	if p.binDir == "" {
		return "hdfs.cmd"
	}
	return p.binDir + `\hdfs.cmd`
}
