package namenode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/metrics"
	"github.com/yaroslav/nnctl/internal/runner"
)

// FormatEngine decides whether the NameNode metadata has been formatted and
// formats it when it has not.
type FormatEngine struct {
	cfg    *config.Config
	fs     afero.Fs
	runner runner.Runner
	client hdfsClient
	logger *zap.Logger
}

// NewFormatEngine creates a format engine over fs.
func NewFormatEngine(cfg *config.Config, fs afero.Fs, r runner.Runner, hdfsBinary string, logger *zap.Logger) *FormatEngine {
	return &FormatEngine{
		cfg:    cfg,
		fs:     fs,
		runner: r,
		client: hdfsClient{cfg: cfg, binary: hdfsBinary},
		logger: logger,
	}
}

// IsFormatted reports whether formatting must be skipped.
//
// Current markers win. Legacy markers are migrated to the current locations
// and removed. With no marker at all, any non-empty name directory counts as
// formatted so that existing metadata is never overwritten.
func (f *FormatEngine) IsFormatted(_ context.Context) bool {
	if f.hasCurrentMarker() {
		f.backfillMarkers()
		metrics.FormatDecisions.WithLabelValues("marker").Inc()
		return true
	}

	if f.migrateLegacyMarkers() {
		return true
	}

	nonEmpty := f.nonEmptyNameDirs()
	if len(nonEmpty) > 0 {
		f.logger.Error("NameNode directories are not empty, will not format the NameNode",
			zap.Strings("non_empty_dirs", nonEmpty))
		metrics.FormatDecisions.WithLabelValues("non_empty").Inc()
		return true
	}

	metrics.FormatDecisions.WithLabelValues("empty").Inc()
	return false
}

// Format formats the NameNode unless it is already formatted, then writes
// every marker. force skips the formatted check. Only a non-HA NameNode or the
// designated HA active host ever formats.
func (f *FormatEngine) Format(ctx context.Context, force bool) error {
	if f.cfg.HA.Enabled && !f.cfg.IsActiveHost() {
		f.logger.Info("not the designated active NameNode, skipping format",
			zap.String("active_host", f.cfg.HA.ActiveHost))
		return nil
	}

	if !force && f.IsFormatted(ctx) {
		f.logger.Info("NameNode already formatted, skipping format")
		return nil
	}

	args := []string{"namenode", "-format", "-nonInteractive"}
	if force {
		args = append(args, "-force")
	}
	cmd := f.client.command(args...)
	res, err := f.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to format NameNode: %w", err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to format NameNode: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	f.logger.Info("NameNode formatted", zap.Bool("force", force))

	for _, dir := range f.cfg.Format.MarkerDirs {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create format marker %s: %w", dir, err)
		}
	}
	return nil
}

func (f *FormatEngine) hasCurrentMarker() bool {
	found := false
	for _, dir := range f.cfg.Format.MarkerDirs {
		if ok, _ := afero.DirExists(f.fs, dir); ok {
			f.logger.Info("format marker exists, NameNode already formatted", zap.String("marker", dir))
			found = true
		}
	}
	return found
}

// backfillMarkers creates only the markers that are missing.
func (f *FormatEngine) backfillMarkers() {
	for _, dir := range f.cfg.Format.MarkerDirs {
		if ok, _ := afero.DirExists(f.fs, dir); ok {
			continue
		}
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			f.logger.Warn("failed to back-fill format marker", zap.String("marker", dir), zap.Error(err))
			continue
		}
		f.logger.Info("back-filled format marker", zap.String("marker", dir))
	}
}

// migrateLegacyMarkers moves every legacy marker found into the current
// locations and reports whether any was found.
func (f *FormatEngine) migrateLegacyMarkers() bool {
	migrated := false
	for _, legacy := range f.cfg.Format.LegacyMarkerDirs {
		info, err := f.fs.Stat(legacy)
		if err != nil {
			continue
		}

		rule := "legacy_file"
		if info.IsDir() {
			rule = "legacy_dir"
			for _, dir := range f.cfg.Format.MarkerDirs {
				if err := copyTree(f.fs, legacy, dir); err != nil {
					f.logger.Warn("failed to copy legacy format marker",
						zap.String("legacy", legacy), zap.String("marker", dir), zap.Error(err))
				}
			}
		} else {
			for _, dir := range f.cfg.Format.MarkerDirs {
				if err := f.fs.MkdirAll(dir, 0o755); err != nil {
					f.logger.Warn("failed to create format marker",
						zap.String("marker", dir), zap.Error(err))
				}
			}
		}

		if err := f.fs.RemoveAll(legacy); err != nil {
			f.logger.Warn("failed to remove legacy format marker", zap.String("legacy", legacy), zap.Error(err))
		}
		f.logger.Info("migrated legacy format marker", zap.String("legacy", legacy))
		metrics.FormatDecisions.WithLabelValues(rule).Inc()
		migrated = true
	}
	return migrated
}

// nonEmptyNameDirs lists name directories holding any entry. A directory
// that does not exist is empty; one that cannot be listed is reported as
// non-empty.
func (f *FormatEngine) nonEmptyNameDirs() []string {
	var nonEmpty []string
	for _, dir := range f.cfg.HDFS.NameDirs {
		entries, err := afero.ReadDir(f.fs, dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			f.logger.Warn("cannot list NameNode directory, treating it as non-empty",
				zap.String("dir", dir), zap.Error(err))
			nonEmpty = append(nonEmpty, dir)
			continue
		}
		if len(entries) > 0 {
			nonEmpty = append(nonEmpty, dir)
		}
	}
	return nonEmpty
}

// PreviousImageExists reports whether any name directory still holds the
// `previous` image kept by an unfinalized upgrade.
func (f *FormatEngine) PreviousImageExists() bool {
	for _, dir := range f.cfg.HDFS.NameDirs {
		if ok, _ := afero.DirExists(f.fs, filepath.Join(dir, "previous")); ok {
			return true
		}
	}
	return false
}

// copyTree copies src (a directory) to dst, preserving modes.
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, info.Mode().Perm())
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, target, data, info.Mode().Perm())
	})
}
