package supervisor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/runner"
)

var scPID = regexp.MustCompile(`PID\s*:\s*(\d+)`)

// ServiceControl supervises daemons registered as Windows services.
// Start options are baked into the service definition and ignored here.
type ServiceControl struct {
	runner runner.Runner
	logger *zap.Logger

	// names maps logical daemon names to service names.
	names map[string]string
}

// NewServiceControl creates a Windows service supervisor.
func NewServiceControl(r runner.Runner, logger *zap.Logger) *ServiceControl {
	return &ServiceControl{
		runner: r,
		logger: logger,
		names: map[string]string{
			DaemonNamenode: "namenode",
			DaemonZKFC:     "zkfc",
		},
	}
}

func (s *ServiceControl) service(daemon string) string {
	if name, ok := s.names[daemon]; ok {
		return name
	}
	return daemon
}

// Start starts the service when it is not already running.
func (s *ServiceControl) Start(ctx context.Context, daemon string, _ StartOptions) error {
	st, err := s.Status(ctx, daemon)
	if err != nil {
		return err
	}
	if st.Running {
		return nil
	}
	return s.sc(ctx, "start", daemon)
}

// Stop stops the service.
func (s *ServiceControl) Stop(ctx context.Context, daemon string) error {
	return s.sc(ctx, "stop", daemon)
}

// Status queries the service state.
func (s *ServiceControl) Status(ctx context.Context, daemon string) (Status, error) {
	res, err := s.runner.Run(ctx, runner.Command{Args: []string{"sc", "queryex", s.service(daemon)}})
	if err != nil {
		return Status{}, fmt.Errorf("failed to query %s: %w", daemon, err)
	}
	if !res.Matches("RUNNING") {
		return Status{}, nil
	}
	st := Status{Running: true}
	if m := scPID.FindStringSubmatch(res.Output); m != nil {
		st.PID, _ = strconv.Atoi(m[1])
	}
	return st, nil
}

func (s *ServiceControl) sc(ctx context.Context, verb, daemon string) error {
	res, err := s.runner.Run(ctx, runner.Command{Args: []string{"sc", verb, s.service(daemon)}})
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, daemon, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to %s %s: exit code %d: %s", verb, daemon, res.ExitCode, strings.TrimSpace(res.Output))
	}
	s.logger.Info("service "+verb+" issued", zap.String("daemon", daemon))
	return nil
}
