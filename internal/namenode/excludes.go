package namenode

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// writeExcludeFile writes the decommission exclusion list, one host per line,
// owned by the HDFS user.
func (o *Orchestrator) writeExcludeFile(logger *zap.Logger) error {
	file := o.cfg.Decommission.ExcludeFile
	if file == "" {
		return fmt.Errorf("%w: decommission.exclude_file is empty", ErrConfiguration)
	}

	var b strings.Builder
	written := 0
	for _, host := range o.cfg.Decommission.ExcludeHosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		b.WriteString(host)
		b.WriteByte('\n')
		written++
	}

	if err := o.fs.MkdirAll(path.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path.Dir(file), err)
	}
	if err := afero.WriteFile(o.fs, file, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write exclude file: %w", err)
	}
	o.chownHDFS(logger, file)

	logger.Info("exclude file written",
		zap.String("file", file),
		zap.Int("hosts", written))
	return nil
}

// chownHDFS hands path to the HDFS user and group. Ownership is best effort:
// an unknown account only produces a warning.
func (o *Orchestrator) chownHDFS(logger *zap.Logger, p string) {
	uid, gid, err := o.lookupIDs(o.cfg.HDFS.User, o.cfg.HDFS.Group)
	if err != nil {
		logger.Warn("cannot resolve HDFS user, leaving ownership unchanged",
			zap.String("path", p), zap.Error(err))
		return
	}
	if err := o.fs.Chown(p, uid, gid); err != nil {
		logger.Warn("failed to change ownership", zap.String("path", p), zap.Error(err))
	}
}
