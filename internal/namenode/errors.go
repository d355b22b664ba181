package namenode

import (
	"errors"

	"github.com/yaroslav/nnctl/internal/supervisor"
)

var (
	// ErrConfiguration marks a request or configuration that cannot be acted on.
	// Returned before any side effect.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotRunning is returned by Status when the NameNode process is not alive.
	ErrNotRunning = supervisor.ErrNotRunning

	// ErrBootstrapFailed is returned by Start when a standby could not bootstrap.
	ErrBootstrapFailed = errors.New("standby bootstrap failed")
)
