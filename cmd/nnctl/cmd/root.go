// Package cmd provides the nnctl CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaroslav/nnctl/internal/namenode"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitNotRunning    = 3
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "nnctl",
	Short: "nnctl - HDFS NameNode lifecycle orchestrator",
	Long: `nnctl configures, starts, stops and decommissions an HDFS NameNode host.

It coordinates with an optional HA peer, handles rolling and non-rolling
stack upgrades, and formats the NameNode only when it is safe to do so.

Configuration is read from --config, $NNCTL_CONFIG or /etc/nnctl/namenode.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, namenode.ErrNotRunning):
		return ExitNotRunning
	case errors.Is(err, namenode.ErrConfiguration):
		return ExitConfiguration
	default:
		return ExitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the NameNode host configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override the configured log format (console, json)")
}

// versionString returns formatted version information.
func versionString() string {
	return fmt.Sprintf("nnctl %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
}
