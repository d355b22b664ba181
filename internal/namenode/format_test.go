package namenode

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/runner/runnertest"
)

func newTestFormatEngine(t *testing.T, cfg *config.Config, fs afero.Fs) (*FormatEngine, *runnertest.Fake) {
	t.Helper()

	fake := &runnertest.Fake{}
	return NewFormatEngine(cfg, fs, fake, testHDFS, zaptest.NewLogger(t)), fake
}

func TestIsFormattedAllEmpty(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	for _, dir := range cfg.HDFS.NameDirs {
		mustMkdir(t, fs, dir)
	}
	engine, _ := newTestFormatEngine(t, cfg, fs)

	assert.False(t, engine.IsFormatted(context.Background()))
}

func TestIsFormattedMissingNameDirsCountAsEmpty(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	engine, _ := newTestFormatEngine(t, cfg, afero.NewMemMapFs())

	assert.False(t, engine.IsFormatted(context.Background()))
}

func TestIsFormattedOneNonEmptyDir(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	for _, dir := range cfg.HDFS.NameDirs {
		mustMkdir(t, fs, dir)
	}
	mustWrite(t, fs, cfg.HDFS.NameDirs[1]+"/current/VERSION", "layoutVersion=-63\n")

	logger, logs := newObservedLogger()
	engine := NewFormatEngine(cfg, fs, &runnertest.Fake{}, testHDFS, logger)

	assert.True(t, engine.IsFormatted(context.Background()))

	entries := logs.FilterMessageSnippet("not empty").All()
	require.Len(t, entries, 1)
	dirs, ok := entries[0].ContextMap()["non_empty_dirs"].([]interface{})
	require.True(t, ok, "expected non_empty_dirs field, got %v", entries[0].ContextMap())
	assert.Equal(t, []interface{}{cfg.HDFS.NameDirs[1]}, dirs)
}

func TestIsFormattedUnreadableDirIsNonEmpty(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	base := afero.NewMemMapFs()
	for _, dir := range cfg.HDFS.NameDirs {
		mustMkdir(t, base, dir)
	}
	fs := &failingOpenFs{Fs: base, fail: map[string]bool{cfg.HDFS.NameDirs[0]: true}}
	engine, _ := newTestFormatEngine(t, cfg, fs)

	assert.True(t, engine.IsFormatted(context.Background()))
}

func TestIsFormattedBackfillsMissingMarkers(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	mustMkdir(t, fs.Fs, cfg.Format.MarkerDirs[0])
	engine, _ := newTestFormatEngine(t, cfg, fs)

	require.True(t, engine.IsFormatted(context.Background()))
	for _, m := range cfg.Format.MarkerDirs {
		assert.True(t, exists(t, fs, m), "marker %s should be back-filled", m)
	}
	assert.Equal(t, len(cfg.Format.MarkerDirs)-1, fs.count())

	before := fs.count()
	require.True(t, engine.IsFormatted(context.Background()))
	assert.Equal(t, before, fs.count(), "second check must not create anything")
}

func TestIsFormattedMigratesLegacyDirectory(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	legacy := cfg.Format.LegacyMarkerDirs[0]
	mustWrite(t, fs, legacy+"/stamp", "formatted\n")
	engine, _ := newTestFormatEngine(t, cfg, fs)

	require.True(t, engine.IsFormatted(context.Background()))

	assert.False(t, exists(t, fs, legacy), "legacy marker should be deleted")
	for _, m := range cfg.Format.MarkerDirs {
		data, err := afero.ReadFile(fs, m+"/stamp")
		require.NoError(t, err, "marker %s should hold the copied legacy content", m)
		assert.Equal(t, "formatted\n", string(data))
	}
}

func TestIsFormattedMigratesLegacyFile(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	legacy := cfg.Format.LegacyMarkerDirs[1]
	mustWrite(t, fs, legacy, "")
	engine, _ := newTestFormatEngine(t, cfg, fs)

	require.True(t, engine.IsFormatted(context.Background()))

	assert.False(t, exists(t, fs, legacy), "legacy marker file should be deleted")
	for _, m := range cfg.Format.MarkerDirs {
		ok, err := afero.DirExists(fs, m)
		require.NoError(t, err)
		assert.True(t, ok, "marker %s should be created", m)
	}
}

func TestFormatRunsAndWritesMarkers(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	engine, fake := newTestFormatEngine(t, cfg, fs)

	require.NoError(t, engine.Format(context.Background(), false))

	assert.Equal(t, 1, fake.Count("namenode", "-format", "-nonInteractive"))
	assert.Equal(t, 0, fake.Count("-force"))
	for _, m := range cfg.Format.MarkerDirs {
		assert.True(t, exists(t, fs, m))
	}

	// Markers now exist, so a second format is a no-op.
	require.NoError(t, engine.Format(context.Background(), false))
	assert.Equal(t, 1, fake.Count("namenode", "-format"))
}

func TestFormatForceIgnoresMarkers(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	mustMkdir(t, fs, cfg.Format.MarkerDirs[0])
	engine, fake := newTestFormatEngine(t, cfg, fs)

	require.NoError(t, engine.Format(context.Background(), true))
	assert.Equal(t, 1, fake.Count("namenode", "-format", "-force"))
}

func TestFormatOnlyOnDesignatedActive(t *testing.T) {
	fs := afero.NewMemMapFs()

	standby, fake := newTestFormatEngine(t, haConfig(t, "nn2.example.com"), fs)
	require.NoError(t, standby.Format(context.Background(), true))
	assert.Empty(t, fake.Calls(), "standby host must never format")

	active, fake := newTestFormatEngine(t, haConfig(t, "nn1.example.com"), fs)
	require.NoError(t, active.Format(context.Background(), false))
	assert.Equal(t, 1, fake.Count("namenode", "-format"))
}

func TestFormatFailure(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fake := &runnertest.Fake{Handler: exitCode(1)}
	engine := NewFormatEngine(cfg, afero.NewMemMapFs(), fake, testHDFS, zaptest.NewLogger(t))

	err := engine.Format(context.Background(), false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "exit code 1"))
}

func TestPreviousImageExists(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	fs := afero.NewMemMapFs()
	engine, _ := newTestFormatEngine(t, cfg, fs)

	assert.False(t, engine.PreviousImageExists())
	mustMkdir(t, fs, cfg.HDFS.NameDirs[2]+"/previous")
	assert.True(t, engine.PreviousImageExists())
}
