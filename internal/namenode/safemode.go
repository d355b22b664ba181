package namenode

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/logging"
	"github.com/yaroslav/nnctl/internal/metrics"
	"github.com/yaroslav/nnctl/internal/runner"
)

const (
	// SafeModeTries bounds safe mode queries.
	SafeModeTries = 65

	// SafeModeDelay separates safe mode queries.
	SafeModeDelay = 10 * time.Second

	safeModeOff = "Safe mode is OFF"
)

// SafeModeReason explains how a safe mode wait ended.
type SafeModeReason string

const (
	SafeModeLeft      SafeModeReason = "off"
	SafeModeExhausted SafeModeReason = "exhausted"
	SafeModeAborted   SafeModeReason = "aborted"
)

// SafeModeResult is the outcome of waiting for safe mode to turn off.
type SafeModeResult struct {
	Off      bool
	Attempts int
	Reason   SafeModeReason
	Err      error
}

// SafeModeWaiter polls the NameNode until it leaves safe mode.
type SafeModeWaiter struct {
	cfg    *config.Config
	runner runner.Runner
	client hdfsClient
	logger *zap.Logger
	sleep  runner.Sleeper
}

// NewSafeModeWaiter creates a waiter that queries through the given hdfs binary.
func NewSafeModeWaiter(cfg *config.Config, r runner.Runner, hdfsBinary string, logger *zap.Logger) *SafeModeWaiter {
	return &SafeModeWaiter{
		cfg:    cfg,
		runner: r,
		client: hdfsClient{cfg: cfg, binary: hdfsBinary},
		logger: logger,
		sleep:  runner.Sleep,
	}
}

// WaitOff polls `dfsadmin -safemode get` until it reports OFF or the
// budget runs out. The state is queried fresh on every attempt.
func (w *SafeModeWaiter) WaitOff(ctx context.Context) SafeModeResult {
	cmd := w.client.dfsadmin("-safemode", "get")
	res, attempts, err := runner.Retry(ctx, w.runner, cmd, runner.Policy{Tries: SafeModeTries, Delay: SafeModeDelay}, w.sleep,
		func(res runner.Result) bool {
			metrics.SafeModePolls.Inc()
			return res.Matches(safeModeOff)
		})

	result := SafeModeResult{Attempts: attempts}
	switch {
	case err != nil:
		result.Reason = SafeModeAborted
		result.Err = err
	case res.Matches(safeModeOff):
		result.Off = true
		result.Reason = SafeModeLeft
	default:
		result.Reason = SafeModeExhausted
	}

	metrics.SafeModeWaits.WithLabelValues(string(result.Reason)).Inc()
	w.logger.Info("safe mode wait finished",
		zap.Bool("off", result.Off),
		zap.Int(logging.FieldAttempt, result.Attempts),
		zap.String("reason", string(result.Reason)))
	return result
}
