package namenode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/runner"
)

// hdfsDir is a directory that must exist on HDFS once the NameNode is active.
type hdfsDir struct {
	path  string
	owner string
	mode  os.FileMode
}

func (o *Orchestrator) hdfsDirectories() ([]hdfsDir, error) {
	smokeMode, err := o.cfg.Smoke.FileMode()
	if err != nil {
		return nil, fmt.Errorf("%w: smoke.mode: %v", ErrConfiguration, err)
	}

	dirs := []hdfsDir{
		{path: o.cfg.HDFS.TmpDir, owner: o.cfg.HDFS.User, mode: 0o777},
	}
	if o.cfg.Smoke.HDFSDir != "" {
		dirs = append(dirs, hdfsDir{path: o.cfg.Smoke.HDFSDir, owner: o.cfg.Smoke.User, mode: smokeMode})
	}
	if o.cfg.Audit.Enabled {
		owner := o.cfg.Audit.User
		if owner == "" {
			owner = o.cfg.HDFS.User
		}
		for _, d := range o.cfg.Audit.HDFSDirs {
			dirs = append(dirs, hdfsDir{path: d, owner: owner, mode: 0o700})
		}
	}
	return dirs, nil
}

// createHDFSDirectories creates, chmods and chowns each directory through the hdfs client.
func (o *Orchestrator) createHDFSDirectories(ctx context.Context, client hdfsClient, logger *zap.Logger) error {
	dirs, err := o.hdfsDirectories()
	if err != nil {
		return err
	}

	for _, d := range dirs {
		if d.path == "" {
			continue
		}
		steps := []runner.Command{
			client.dfs("-mkdir", "-p", d.path),
			client.dfs("-chmod", fmt.Sprintf("%o", d.mode), d.path),
			client.dfs("-chown", d.owner, d.path),
		}
		for _, cmd := range steps {
			res, err := o.runner.Run(ctx, cmd)
			if err != nil {
				return fmt.Errorf("failed to prepare HDFS directory %s: %w", d.path, err)
			}
			if !res.Succeeded() {
				return fmt.Errorf("failed to prepare HDFS directory %s: exit code %d: %s",
					d.path, res.ExitCode, strings.TrimSpace(res.Output))
			}
		}
		logger.Info("HDFS directory ready",
			zap.String("dir", d.path),
			zap.String("owner", d.owner),
			zap.String("mode", fmt.Sprintf("%04o", d.mode)))
	}
	return nil
}
