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
	// ProbeRounds is the number of local/peer query rounds before giving up.
	ProbeRounds = 5

	// ProbeDelay separates rounds. No delay follows the last round.
	ProbeDelay = 6 * time.Second
)

// Prober determines whether the local NameNode is the HA active node.
type Prober struct {
	cfg    *config.Config
	runner runner.Runner
	client hdfsClient
	logger *zap.Logger
	sleep  runner.Sleeper
}

// NewProber creates a prober that queries through the given hdfs binary.
func NewProber(cfg *config.Config, r runner.Runner, hdfsBinary string, logger *zap.Logger) *Prober {
	return &Prober{
		cfg:    cfg,
		runner: r,
		client: hdfsClient{cfg: cfg, binary: hdfsBinary},
		logger: logger,
		sleep:  runner.Sleep,
	}
}

// IsActive reports whether this NameNode is active.
//
// Without HA every NameNode is active and no command is issued. With HA the
// local node is asked first, then the peer; the first conclusive answer wins.
// An inconclusive probe resolves to false and is never an error.
func (p *Prober) IsActive(ctx context.Context) bool {
	if !p.cfg.HA.Enabled {
		return true
	}

	for round := 1; round <= ProbeRounds; round++ {
		metrics.ActiveProbeRounds.Inc()

		if p.serviceActive(ctx, p.cfg.HA.NamenodeID, round) {
			p.observe("active", true)
			return true
		}
		if p.serviceActive(ctx, p.cfg.HA.OtherNamenodeID, round) {
			p.logger.Info("peer NameNode is active",
				zap.String(logging.FieldNamenodeID, p.cfg.HA.OtherNamenodeID))
			p.observe("standby", false)
			return false
		}

		if round < ProbeRounds {
			if err := p.sleep(ctx, ProbeDelay); err != nil {
				p.logger.Warn("active probe interrupted", zap.Error(err))
				p.observe("unknown", false)
				return false
			}
		}
	}

	p.logger.Info("active NameNode not found",
		zap.Int("rounds", ProbeRounds))
	p.observe("unknown", false)
	return false
}

func (p *Prober) serviceActive(ctx context.Context, namenodeID string, round int) bool {
	res, err := p.runner.Run(ctx, p.client.haadmin("-getServiceState", namenodeID))
	if err != nil {
		p.logger.Warn("failed to query NameNode service state",
			zap.String(logging.FieldNamenodeID, namenodeID),
			zap.Int(logging.FieldAttempt, round),
			zap.Error(err))
		return false
	}
	return res.Matches("active")
}

func (p *Prober) observe(outcome string, active bool) {
	metrics.ActiveProbes.WithLabelValues(outcome).Inc()
	if active {
		metrics.IsActive.Set(1)
	} else {
		metrics.IsActive.Set(0)
	}
}
