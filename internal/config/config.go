// Package config loads the resolved NameNode host configuration.
//
// The file is produced by the cluster manager for one host and is treated as
// read-only input: nothing here resolves keys or renders templates.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/yaroslav/nnctl/internal/logging"
)

const (
	// DefaultConfigPath is where the cluster manager drops the host config.
	DefaultConfigPath = "/etc/nnctl/namenode.yaml"

	// EnvConfigPath overrides the config path.
	EnvConfigPath = "NNCTL_CONFIG"

	// MarkerSuffix is appended to each name directory to form its format marker.
	MarkerSuffix = "namenode-formatted"
)

// DefaultLegacyMarkerDirs are the marker locations used by older releases.
var DefaultLegacyMarkerDirs = []string{
	"/var/run/hadoop/hdfs/namenode-formatted",
	"/var/run/hadoop/hdfs/namenode/formatted",
	"/var/lib/hdfs/namenode/formatted",
}

// Config is the complete per-host configuration.
type Config struct {
	// Hostname is the local host name as known to the cluster.
	Hostname string `yaml:"hostname"`

	HDFS         HDFSConfig         `yaml:"hdfs"`
	HA           HAConfig           `yaml:"ha"`
	Security     SecurityConfig     `yaml:"security"`
	Format       FormatConfig       `yaml:"format"`
	Decommission DecommissionConfig `yaml:"decommission"`
	Smoke        SmokeConfig        `yaml:"smoke"`
	Audit        AuditConfig        `yaml:"audit"`
	Logging      logging.Config     `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	History      HistoryConfig      `yaml:"history"`
	Agent        AgentConfig        `yaml:"agent"`
}

// HDFSConfig describes the local Hadoop installation.
type HDFSConfig struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`

	// BinDir holds the hdfs client binary.
	BinDir string `yaml:"bin_dir"`

	// SbinDir holds hadoop-daemon.sh.
	SbinDir string `yaml:"sbin_dir"`

	ConfDir string `yaml:"conf_dir"`
	PIDDir  string `yaml:"pid_dir"`
	LogDir  string `yaml:"log_dir"`

	// NameDirs is dfs.namenode.name.dir split on commas.
	NameDirs []string `yaml:"name_dirs"`

	// NamenodeAddress is fs.defaultFS, used for refreshNodes without HA.
	NamenodeAddress string `yaml:"namenode_address"`

	// TmpDir is the world-writable HDFS scratch directory.
	TmpDir string `yaml:"tmp_dir"`
}

// HAConfig describes the HA pair from this host's point of view.
type HAConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Nameservice string `yaml:"nameservice"`

	// NamenodeID is the id of the NameNode on this host.
	NamenodeID string `yaml:"namenode_id"`

	// OtherNamenodeID is the id of the peer.
	OtherNamenodeID string `yaml:"other_namenode_id"`

	// ActiveHost is the host designated active at install time.
	ActiveHost string `yaml:"active_host"`

	// StandbyHost is the host designated standby at install time.
	StandbyHost string `yaml:"standby_host"`

	// RPCAddress is host:port of this NameNode's RPC endpoint.
	RPCAddress string `yaml:"rpc_address"`
}

// SecurityConfig holds Kerberos settings.
type SecurityConfig struct {
	Enabled   bool   `yaml:"enabled"`
	KinitPath string `yaml:"kinit_path"`
	Keytab    string `yaml:"keytab"`
	Principal string `yaml:"principal"`
}

// FormatConfig controls the format decision engine.
type FormatConfig struct {
	// Disabled forbids formatting regardless of the caller's request.
	Disabled bool `yaml:"disabled"`

	// MarkerDirs correspond 1:1 with HDFS.NameDirs. Derived when empty.
	MarkerDirs []string `yaml:"marker_dirs"`

	// LegacyMarkerDirs are migrated into MarkerDirs when found.
	LegacyMarkerDirs []string `yaml:"legacy_marker_dirs"`
}

// DecommissionConfig holds the exclusion list settings.
type DecommissionConfig struct {
	ExcludeFile           string   `yaml:"exclude_file"`
	ExcludeHosts          []string `yaml:"exclude_hosts"`
	UpdateExcludeFileOnly bool     `yaml:"update_exclude_file_only"`
}

// SmokeConfig describes the smoke-test user's HDFS home.
type SmokeConfig struct {
	User    string `yaml:"user"`
	HDFSDir string `yaml:"hdfs_dir"`
	Mode    string `yaml:"mode"`
}

// AuditConfig describes the access-control audit integration.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	User    string `yaml:"user"`

	// HDFSDirs are created on the active NameNode after start.
	HDFSDirs []string `yaml:"hdfs_dirs"`

	// PluginScript, when set, is run before start to enable the plugin.
	PluginScript string `yaml:"plugin_script"`
}

// MetricsConfig controls metric export for one-shot CLI runs.
type MetricsConfig struct {
	// TextfilePath is a node-exporter textfile collector target.
	TextfilePath string `yaml:"textfile_path"`
}

// HistoryConfig controls the action journal.
type HistoryConfig struct {
	// Path of the SQLite database. Empty disables the journal.
	Path string `yaml:"path"`
}

// AgentConfig controls the HTTP agent.
type AgentConfig struct {
	Listen string `yaml:"listen"`

	// ActionRate is the sustained number of action requests per second.
	// Zero or less disables the limit.
	ActionRate float64 `yaml:"action_rate"`

	// ActionBurst is the number of action requests accepted at once.
	ActionBurst int `yaml:"action_burst"`
}

// Default returns a Config populated with stock HDP paths.
func Default() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		Hostname: hostname,
		HDFS: HDFSConfig{
			User:    "hdfs",
			Group:   "hadoop",
			BinDir:  "/usr/hdp/current/hadoop-client/bin",
			SbinDir: "/usr/hdp/current/hadoop-client/sbin",
			ConfDir: "/etc/hadoop/conf",
			PIDDir:  "/var/run/hadoop/hdfs",
			LogDir:  "/var/log/hadoop/hdfs",
			TmpDir:  "/tmp",
		},
		Security: SecurityConfig{
			KinitPath: "/usr/bin/kinit",
		},
		Format: FormatConfig{
			LegacyMarkerDirs: append([]string(nil), DefaultLegacyMarkerDirs...),
		},
		Smoke: SmokeConfig{
			User:    "ambari-qa",
			HDFSDir: "/user/ambari-qa",
			Mode:    "0770",
		},
		Logging: logging.DefaultConfig(),
		Agent: AgentConfig{
			Listen:      "127.0.0.1:8671",
			ActionRate:  1,
			ActionBurst: 5,
		},
	}
}

// Load reads, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ResolvePath picks the config path from the flag value, the environment or the default.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultConfigPath
}

func (c *Config) applyDerived() {
	if len(c.Format.MarkerDirs) == 0 {
		for _, dir := range c.HDFS.NameDirs {
			c.Format.MarkerDirs = append(c.Format.MarkerDirs, path.Join(dir, MarkerSuffix))
		}
	}
	if c.Decommission.ExcludeFile == "" && c.HDFS.ConfDir != "" {
		c.Decommission.ExcludeFile = path.Join(c.HDFS.ConfDir, "dfs.exclude")
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	if c.HDFS.User == "" {
		return fmt.Errorf("hdfs.user cannot be empty")
	}
	if len(c.HDFS.NameDirs) == 0 {
		return fmt.Errorf("hdfs.name_dirs cannot be empty")
	}
	for i, dir := range c.HDFS.NameDirs {
		if !isAbs(dir) {
			return fmt.Errorf("hdfs.name_dirs[%d] must be an absolute path: %s", i, dir)
		}
	}
	if len(c.Format.MarkerDirs) != len(c.HDFS.NameDirs) {
		return fmt.Errorf("format.marker_dirs must have one entry per name dir (got %d, want %d)",
			len(c.Format.MarkerDirs), len(c.HDFS.NameDirs))
	}

	if c.HA.Enabled {
		if c.HA.NamenodeID == "" || c.HA.OtherNamenodeID == "" {
			return fmt.Errorf("ha.namenode_id and ha.other_namenode_id are required when HA is enabled")
		}
		if c.HA.NamenodeID == c.HA.OtherNamenodeID {
			return fmt.Errorf("ha.namenode_id and ha.other_namenode_id must differ")
		}
		if c.HA.RPCAddress == "" {
			return fmt.Errorf("ha.rpc_address is required when HA is enabled")
		}
	} else if c.HDFS.NamenodeAddress == "" {
		return fmt.Errorf("hdfs.namenode_address is required when HA is disabled")
	}

	if c.Security.Enabled && (c.Security.Keytab == "" || c.Security.Principal == "") {
		return fmt.Errorf("security.keytab and security.principal are required when security is enabled")
	}

	if _, err := c.Smoke.FileMode(); err != nil {
		return fmt.Errorf("smoke.mode: %w", err)
	}

	return nil
}

// FileMode parses the octal smoke directory mode.
func (s SmokeConfig) FileMode() (os.FileMode, error) {
	if s.Mode == "" {
		return 0o770, nil
	}
	v, err := strconv.ParseUint(s.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q", s.Mode)
	}
	return os.FileMode(v), nil
}

// PIDFile is the NameNode pid file written by hadoop-daemon.sh.
func (c *Config) PIDFile(daemon string) string {
	return path.Join(c.HDFS.PIDDir, fmt.Sprintf("hadoop-%s-%s.pid", c.HDFS.User, daemon))
}

// IsStandbyHost reports whether this host is the designated HA standby.
func (c *Config) IsStandbyHost() bool {
	return c.HA.Enabled && c.HA.StandbyHost != "" && c.HA.StandbyHost == c.Hostname
}

// IsActiveHost reports whether this host is the designated HA active.
func (c *Config) IsActiveHost() bool {
	return c.HA.Enabled && c.HA.ActiveHost != "" && c.HA.ActiveHost == c.Hostname
}

// isAbs accepts both POSIX and native absolute paths.
func isAbs(p string) bool {
	return path.IsAbs(p) || filepath.IsAbs(p)
}
