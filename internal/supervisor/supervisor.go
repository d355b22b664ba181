// Package supervisor starts, stops and probes Hadoop daemons by logical name.
package supervisor

import (
	"context"
	"errors"
)

// ErrNotRunning is returned by Status callers that require a live daemon.
var ErrNotRunning = errors.New("daemon is not running")

// Daemon names understood by every Supervisor.
const (
	DaemonNamenode = "namenode"
	DaemonZKFC     = "zkfc"
)

// StartOptions tune one start.
type StartOptions struct {
	// Args are appended to the daemon command line (e.g. -rollingUpgrade started).
	Args []string

	// CreatePIDDir and CreateLogDir ask the supervisor to create and own its directories.
	CreatePIDDir bool
	CreateLogDir bool
}

// Status is a point-in-time liveness probe result.
type Status struct {
	Running bool
	PID     int
}

// Supervisor is the process supervision capability of a platform.
type Supervisor interface {
	Start(ctx context.Context, daemon string, opts StartOptions) error
	Stop(ctx context.Context, daemon string) error
	Status(ctx context.Context, daemon string) (Status, error)
}
