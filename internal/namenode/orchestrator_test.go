package namenode

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaroslav/nnctl/internal/history"
	"github.com/yaroslav/nnctl/internal/runner"
	"github.com/yaroslav/nnctl/internal/runner/runnertest"
	"github.com/yaroslav/nnctl/internal/supervisor"
)

func startRequest() Request {
	return Request{Action: ActionStart, HDFSBinary: testHDFS, DoFormat: true}
}

func TestRunValidatesBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing action", Request{}},
		{"unknown action", Request{Action: "restart"}},
		{"start without binary", Request{Action: ActionStart}},
		{"stop without binary", Request{Action: ActionStop}},
		{"force outside format", Request{Action: ActionStart, HDFSBinary: testHDFS, ForceFormat: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, loadConfig(t, nonHAConfig), nil)

			err := h.orch.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "expected configuration error, got %v", err)
			assert.True(t, IsConfigurationError(err))

			assert.Empty(t, h.runner.Calls())
			assert.Empty(t, h.sup.starts)
			assert.Empty(t, h.sup.stops)
			assert.Empty(t, h.journal.entries)
			entries, _ := afero.ReadDir(h.fs, "/")
			assert.Empty(t, entries, "filesystem must be untouched")
		})
	}
}

func TestConfigureCreatesNameDirs(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	h := newHarness(t, cfg, nil)

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionConfigure}))

	for _, dir := range cfg.HDFS.NameDirs {
		info, err := h.fs.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, "drwxr-xr-x", info.Mode().String())
	}
	assert.Empty(t, h.runner.Calls())
}

func TestStartNonHA(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig)
	h := newHarness(t, cfg, haState(""))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))

	assert.Equal(t, 0, h.runner.Count("haadmin"), "no HA probe without HA")
	assert.Equal(t, 1, h.runner.Count("namenode", "-format", "-nonInteractive"))
	for _, m := range cfg.Format.MarkerDirs {
		assert.True(t, exists(t, h.fs, m))
	}

	data, err := afero.ReadFile(h.fs, cfg.Decommission.ExcludeFile)
	require.NoError(t, err)
	assert.Equal(t, "dn3.example.com\ndn4.example.com\n", string(data))

	starts := h.sup.started(supervisor.DaemonNamenode)
	require.Len(t, starts, 1)
	assert.Empty(t, starts[0].opts.Args)
	assert.True(t, starts[0].opts.CreatePIDDir)
	assert.True(t, starts[0].opts.CreateLogDir)

	assert.Equal(t, 1, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-mkdir", "-p", "/tmp"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-chmod", "777", "/tmp"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-chown", "hdfs", "/tmp"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-chmod", "770", "/user/ambari-qa"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-chown", "ambari-qa", "/user/ambari-qa"))

	require.Len(t, h.journal.entries, 1)
	assert.Equal(t, history.ResultSuccess, h.journal.entries[0].Result)
	assert.Equal(t, "start", h.journal.entries[0].Action)
}

func TestStartSkipsFormatWhenDisabled(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+"format:\n  disabled: true\n")
	h := newHarness(t, cfg, haState(""))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))
	assert.Equal(t, 0, h.runner.Count("-format"))

	h = newHarness(t, loadConfig(t, nonHAConfig), haState(""))
	req := startRequest()
	req.DoFormat = false
	require.NoError(t, h.orch.Run(context.Background(), req))
	assert.Equal(t, 0, h.runner.Count("-format"))
}

func TestStartSafeModeExhaustionDoesNotFail(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), func(cmd runner.Command) (runner.Result, error) {
		if runnertest.HasArgs(cmd, "-safemode", "get") {
			return runner.Result{Output: "Safe mode is ON\n"}, nil
		}
		return runner.Result{}, nil
	})

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))

	assert.Equal(t, SafeModeTries, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("still in safe mode").Len())
	assert.Equal(t, 1, h.runner.Count("dfs", "-mkdir", "-p", "/tmp"), "directories are still created")
}

func TestStartStandbyBootstraps(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn2.example.com"), haState("nn2"))

	req := startRequest()
	req.Upgrade.Phase = PhaseInitialStart
	require.NoError(t, h.orch.Run(context.Background(), req))

	assert.Equal(t, 1, h.runner.Count("-bootstrapStandby", "-force"))
	assert.Equal(t, 0, h.runner.Count("-format"), "standby never formats")
	assert.Len(t, h.sup.started(supervisor.DaemonNamenode), 1)
}

func TestStartStandbyBootstrapFailureIsFatal(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn2.example.com"), func(cmd runner.Command) (runner.Result, error) {
		if runnertest.HasArgs(cmd, "-bootstrapStandby") {
			return runner.Result{ExitCode: 1}, nil
		}
		return runner.Result{}, nil
	})

	err := h.orch.Run(context.Background(), startRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBootstrapFailed))
	assert.Equal(t, BootstrapAttempts, h.runner.Count("-bootstrapStandby"))
	assert.Empty(t, h.sup.started(supervisor.DaemonNamenode), "NameNode must not start after a failed bootstrap")

	require.Len(t, h.journal.entries, 1)
	assert.Equal(t, history.ResultFailure, h.journal.entries[0].Result)
}

func TestStartHAActiveWaitsAndCreatesDirs(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState("nn1"))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))

	assert.Equal(t, 1, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 1, h.runner.Count("dfsadmin", "-fs", "hdfs://nn1.example.com:8020"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-mkdir", "-p", "/tmp"))
	assert.Equal(t, 1, h.runner.Count("-getServiceState", "nn1"), "safe mode and directories share one probe")
}

func TestStartHAInconclusiveProbesOnce(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState(""))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))

	assert.Equal(t, ProbeRounds, h.runner.Count("-getServiceState", "nn1"))
	assert.Equal(t, ProbeRounds, h.runner.Count("-getServiceState", "nn2"))
	assert.Equal(t, ProbeRounds-1, h.sleeps.Count())
	assert.Equal(t, 0, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 0, h.runner.Count("dfs", "-mkdir"))
	assert.Len(t, h.sup.started(supervisor.DaemonNamenode), 1)
}

func TestStartRollingUpgradeProbesOnlyForDirectories(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState("nn1"))

	req := startRequest()
	req.Upgrade = UpgradeContext{Type: UpgradeRolling, Direction: DirectionUpgrade}
	require.NoError(t, h.orch.Run(context.Background(), req))

	assert.Equal(t, 1, h.runner.Count("-getServiceState", "nn1"))
	assert.Equal(t, 1, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-mkdir", "-p", "/tmp"))
}

func TestStartHANotActiveSkipsWaitAndDirs(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState("nn2"))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))

	assert.Equal(t, 0, h.runner.Count("-safemode", "get"))
	assert.Equal(t, 0, h.runner.Count("dfs", "-mkdir"))
	assert.Len(t, h.sup.started(supervisor.DaemonNamenode), 1)
}

func TestStartRollingUpgradeWithHA(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState("nn2"))

	req := startRequest()
	req.Upgrade = UpgradeContext{Type: UpgradeRolling, Direction: DirectionUpgrade}
	require.NoError(t, h.orch.Run(context.Background(), req))

	assert.Len(t, h.sup.started(supervisor.DaemonZKFC), 1, "ZKFC should be started when down")
	starts := h.sup.started(supervisor.DaemonNamenode)
	require.Len(t, starts, 1)
	assert.Equal(t, []string{"-rollingUpgrade", "started"}, starts[0].opts.Args)
	// Rolling upgrade with HA always waits, even on the non-active node.
	assert.Equal(t, 1, h.runner.Count("-safemode", "get"))
}

func TestStartRollingUpgradeKeepsRunningZKFC(t *testing.T) {
	h := newHarness(t, haConfig(t, "nn1.example.com"), haState("nn1"))
	h.sup.status[supervisor.DaemonZKFC] = supervisor.Status{Running: true, PID: 4242}

	req := startRequest()
	req.Upgrade = UpgradeContext{Type: UpgradeRolling, Direction: DirectionDowngrade}
	require.NoError(t, h.orch.Run(context.Background(), req))

	assert.Empty(t, h.sup.started(supervisor.DaemonZKFC))
	starts := h.sup.started(supervisor.DaemonNamenode)
	require.Len(t, starts, 1)
	assert.Equal(t, []string{"-rollingUpgrade", "downgrade"}, starts[0].opts.Args)
}

func TestStartNonRollingStaysInSafeMode(t *testing.T) {
	for _, cfgName := range []string{"non-ha", "ha"} {
		t.Run(cfgName, func(t *testing.T) {
			cfg := loadConfig(t, nonHAConfig)
			if cfgName == "ha" {
				cfg = haConfig(t, "nn1.example.com")
			}
			h := newHarness(t, cfg, haState("nn1"))
			mustMkdir(t, h.fs, cfg.HDFS.NameDirs[0]+"/previous")

			req := startRequest()
			req.Upgrade = UpgradeContext{Type: UpgradeNonRolling, Direction: DirectionUpgrade}
			require.NoError(t, h.orch.Run(context.Background(), req))

			assert.Equal(t, 0, h.runner.Count("-safemode", "get"))
			assert.Equal(t, 0, h.runner.Count("dfs", "-mkdir"))
			assert.Equal(t, 0, h.runner.Count("haadmin"))
			starts := h.sup.started(supervisor.DaemonNamenode)
			require.Len(t, starts, 1)
			assert.Equal(t, []string{"-rollingUpgrade", "started"}, starts[0].opts.Args)

			logged := h.logs.FilterMessage("previous file system image check").All()
			require.Len(t, logged, 1)
			assert.Equal(t, true, logged[0].ContextMap()["previous_image_present"])
		})
	}
}

func TestStartKinitWhenSecure(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+`
security:
  enabled: true
  keytab: /etc/security/keytabs/hdfs.headless.keytab
  principal: hdfs@EXAMPLE.COM
`)
	h := newHarness(t, cfg, haState(""))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))
	assert.Equal(t, 1, h.runner.Count("/usr/bin/kinit", "-kt", "/etc/security/keytabs/hdfs.headless.keytab", "hdfs@EXAMPLE.COM"))
}

func TestStartSupervisorFailure(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), haState(""))
	h.sup.startErr = errors.New("exit code 1")

	err := h.orch.Run(context.Background(), startRequest())
	require.Error(t, err)
	assert.Equal(t, 0, h.runner.Count("-safemode", "get"))
}

func TestStartAuditPluginFailureIsFatal(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+`
audit:
  enabled: true
  plugin_script: /usr/lib/ranger-hdfs-plugin/enable-hdfs-plugin.sh
  hdfs_dirs: [/ranger/audit/hdfs]
`)
	h := newHarness(t, cfg, func(cmd runner.Command) (runner.Result, error) {
		if runnertest.HasArgs(cmd, "/usr/lib/ranger-hdfs-plugin/enable-hdfs-plugin.sh") {
			return runner.Result{ExitCode: 2, Output: "plugin error"}, nil
		}
		return runner.Result{}, nil
	})

	err := h.orch.Run(context.Background(), startRequest())
	require.Error(t, err)
	assert.Empty(t, h.sup.starts)
}

func TestStartCreatesAuditDirs(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+`
audit:
  enabled: true
  user: hdfs
  hdfs_dirs: [/ranger/audit/hdfs]
`)
	h := newHarness(t, cfg, haState(""))

	require.NoError(t, h.orch.Run(context.Background(), startRequest()))
	assert.Equal(t, 1, h.runner.Count("dfs", "-mkdir", "-p", "/ranger/audit/hdfs"))
	assert.Equal(t, 1, h.runner.Count("dfs", "-chmod", "700", "/ranger/audit/hdfs"))
}

func TestStop(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), nil)

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionStop, HDFSBinary: testHDFS}))
	assert.Equal(t, []string{supervisor.DaemonNamenode}, h.sup.stops)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), nil)

	err := h.orch.Run(context.Background(), Request{Action: ActionStatus})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning))

	h.sup.status[supervisor.DaemonNamenode] = supervisor.Status{Running: true, PID: 1234}
	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionStatus}))
}

func TestDecommissionExcludeFileOnly(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+"  update_exclude_file_only: true\n")
	h := newHarness(t, cfg, nil)

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionDecommission}))

	assert.Empty(t, h.runner.Calls(), "no refresh commands")
	data, err := afero.ReadFile(h.fs, cfg.Decommission.ExcludeFile)
	require.NoError(t, err)
	assert.Equal(t, "dn3.example.com\ndn4.example.com\n", string(data))
}

func TestDecommissionSkipsBlankHosts(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+"  update_exclude_file_only: true\n")
	cfg.Decommission.ExcludeHosts = []string{"dn3.example.com", "", "  ", "dn4.example.com"}
	h := newHarness(t, cfg, nil)

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionDecommission}))

	data, err := afero.ReadFile(h.fs, cfg.Decommission.ExcludeFile)
	require.NoError(t, err)
	assert.Equal(t, "dn3.example.com\ndn4.example.com\n", string(data))

	written := h.logs.FilterMessage("exclude file written").All()
	require.Len(t, written, 1)
	assert.EqualValues(t, 2, written[0].ContextMap()["hosts"])
}

func TestDecommissionRefreshesNodes(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), nil)
	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionDecommission}))
	assert.Equal(t, 1, h.runner.Count(testHDFS, "dfsadmin", "-fs", "hdfs://nn1.example.com:8020", "-refreshNodes"))

	h = newHarness(t, haConfig(t, "nn2.example.com"), nil)
	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionDecommission}))
	assert.Equal(t, 1, h.runner.Count("dfsadmin", "-fs", "hdfs://nn2.example.com:8020", "-refreshNodes"))
}

func TestDecommissionKinitFirstWhenSecure(t *testing.T) {
	cfg := loadConfig(t, nonHAConfig+`
security:
  enabled: true
  keytab: /etc/security/keytabs/nn.service.keytab
  principal: nn/nn1.example.com@EXAMPLE.COM
`)
	h := newHarness(t, cfg, nil)

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionDecommission}))
	calls := h.runner.Calls()
	require.Len(t, calls, 2)
	assert.True(t, runnertest.HasArgs(calls[0], "-kt"))
	assert.True(t, runnertest.HasArgs(calls[1], "-refreshNodes"))
}

func TestDecommissionRefreshFailure(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), exitCode(255))

	err := h.orch.Run(context.Background(), Request{Action: ActionDecommission})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refreshNodes failed")
}

func TestFormatAction(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), nil)
	mustMkdir(t, h.fs, "/hadoop/hdfs/nn1/namenode-formatted")

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionFormat}))
	assert.Equal(t, 0, h.runner.Count("-format"), "formatted NameNode is left alone")

	require.NoError(t, h.orch.Run(context.Background(), Request{Action: ActionFormat, ForceFormat: true}))
	assert.Equal(t, 1, h.runner.Count(testHDFS, "namenode", "-format", "-force"))
}

func TestRunAttachesInvocationID(t *testing.T) {
	h := newHarness(t, loadConfig(t, nonHAConfig), nil)

	require.NoError(t, h.orch.RunWithID(context.Background(), "inv-1", Request{Action: ActionConfigure}))

	finished := h.logs.FilterMessage("action finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "inv-1", finished[0].ContextMap()["invocation_id"])
	assert.Equal(t, "configure", finished[0].ContextMap()["action"])
	require.Len(t, h.journal.entries, 1)
	assert.Equal(t, "inv-1", h.journal.entries[0].InvocationID)
}

func TestParseHelpers(t *testing.T) {
	up, err := ParseUpgradeType("nonrolling")
	require.NoError(t, err)
	assert.Equal(t, UpgradeNonRolling, up)

	_, err = ParseUpgradeType("sideways")
	assert.True(t, errors.Is(err, ErrConfiguration))

	dir, err := ParseDirection("downgrade")
	require.NoError(t, err)
	assert.Equal(t, DirectionDowngrade, dir)

	a, err := ParseAction("decommission")
	require.NoError(t, err)
	assert.Equal(t, ActionDecommission, a)
}
