package namenode

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/history"
	"github.com/yaroslav/nnctl/internal/platform"
	"github.com/yaroslav/nnctl/internal/runner"
	"github.com/yaroslav/nnctl/internal/runner/runnertest"
	"github.com/yaroslav/nnctl/internal/supervisor"
)

const testHDFS = "/usr/hdp/current/hadoop-client/bin/hdfs"

const nonHAConfig = `
hostname: nn1.example.com
hdfs:
  name_dirs: [/hadoop/hdfs/nn1, /hadoop/hdfs/nn2, /hadoop/hdfs/nn3]
  namenode_address: hdfs://nn1.example.com:8020
decommission:
  exclude_hosts: [dn3.example.com, dn4.example.com]
`

const haConfigTemplate = `
hostname: HOST
hdfs:
  name_dirs: [/hadoop/hdfs/nn1, /hadoop/hdfs/nn2]
ha:
  enabled: true
  nameservice: ns1
  namenode_id: nn1
  other_namenode_id: nn2
  active_host: nn1.example.com
  standby_host: nn2.example.com
  rpc_address: HOST:8020
decommission:
  exclude_hosts: [dn3.example.com]
`

func loadConfig(t *testing.T, data string) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse test config: %v", err)
	}
	return cfg
}

// haConfig returns an HA config for the given host (the active or the standby).
func haConfig(t *testing.T, host string) *config.Config {
	return loadConfig(t, strings.ReplaceAll(haConfigTemplate, "HOST", host))
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

type testPaths struct{}

func (testPaths) HDFSBinary() string { return testHDFS }

type startCall struct {
	daemon string
	opts   supervisor.StartOptions
}

// fakeSupervisor records supervision calls.
type fakeSupervisor struct {
	mu       sync.Mutex
	starts   []startCall
	stops    []string
	status   map[string]supervisor.Status
	startErr error
}

func (f *fakeSupervisor) Start(_ context.Context, daemon string, opts supervisor.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{daemon: daemon, opts: opts})
	return f.startErr
}

func (f *fakeSupervisor) Stop(_ context.Context, daemon string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, daemon)
	return nil
}

func (f *fakeSupervisor) Status(_ context.Context, daemon string) (supervisor.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[daemon], nil
}

func (f *fakeSupervisor) started(daemon string) []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []startCall
	for _, s := range f.starts {
		if s.daemon == daemon {
			out = append(out, s)
		}
	}
	return out
}

// memJournal collects history entries.
type memJournal struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (j *memJournal) Record(_ context.Context, e history.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

type harness struct {
	orch    *Orchestrator
	runner  *runnertest.Fake
	sup     *fakeSupervisor
	fs      afero.Fs
	sleeps  *runnertest.Sleeps
	logs    *observer.ObservedLogs
	journal *memJournal
}

func newHarness(t *testing.T, cfg *config.Config, handler runnertest.HandlerFunc) *harness {
	t.Helper()

	h := &harness{
		runner:  &runnertest.Fake{Handler: handler},
		sup:     &fakeSupervisor{status: map[string]supervisor.Status{}},
		fs:      afero.NewMemMapFs(),
		sleeps:  &runnertest.Sleeps{},
		journal: &memJournal{},
	}
	logger, logs := newObservedLogger()
	h.logs = logs

	p := &platform.Platform{
		Name:       "test",
		Runner:     h.runner,
		Supervisor: h.sup,
		Paths:      testPaths{},
		FS:         h.fs,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.orch = New(cfg, p, logger, Options{
		Sleep:   h.sleeps.Sleep,
		Journal: h.journal,
		Now: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
		LookupIDs: func(string, string) (int, int, error) { return 1001, 1002, nil },
	})
	return h
}

// haState answers haadmin queries: active names the active namenode id,
// empty means neither answers active.
func haState(active string) runnertest.HandlerFunc {
	return func(cmd runner.Command) (runner.Result, error) {
		if runnertest.HasArgs(cmd, "-getServiceState") {
			id := cmd.Args[len(cmd.Args)-1]
			if id == active {
				return runner.Result{Output: "active\n"}, nil
			}
			return runner.Result{ExitCode: 1, Output: "standby\n"}, nil
		}
		if runnertest.HasArgs(cmd, "-safemode", "get") {
			return runner.Result{Output: "Safe mode is OFF\n"}, nil
		}
		return runner.Result{}, nil
	}
}

// countingFs counts directory creations.
type countingFs struct {
	afero.Fs
	mu     sync.Mutex
	mkdirs int
}

func (c *countingFs) MkdirAll(name string, perm os.FileMode) error {
	c.mu.Lock()
	c.mkdirs++
	c.mu.Unlock()
	return c.Fs.MkdirAll(name, perm)
}

func (c *countingFs) Mkdir(name string, perm os.FileMode) error {
	c.mu.Lock()
	c.mkdirs++
	c.mu.Unlock()
	return c.Fs.Mkdir(name, perm)
}

func (c *countingFs) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mkdirs
}

// failingOpenFs fails to open the listed paths.
type failingOpenFs struct {
	afero.Fs
	fail map[string]bool
}

func (f *failingOpenFs) Open(name string) (afero.File, error) {
	if f.fail[name] {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func mustMkdir(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWrite(t *testing.T, fs afero.Fs, file, content string) {
	t.Helper()
	mustMkdir(t, fs, path.Dir(file))
	if err := afero.WriteFile(fs, file, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

func exists(t *testing.T, fs afero.Fs, p string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, p)
	if err != nil {
		t.Fatalf("stat %s: %v", p, err)
	}
	return ok
}
