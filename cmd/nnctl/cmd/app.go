package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/history"
	"github.com/yaroslav/nnctl/internal/logging"
	"github.com/yaroslav/nnctl/internal/metrics"
	"github.com/yaroslav/nnctl/internal/namenode"
	"github.com/yaroslav/nnctl/internal/platform"
)

// app is everything one command invocation needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal *history.Journal
	orch    *namenode.Orchestrator
}

// newApp loads the configuration and wires the orchestrator for this host.
func newApp() (*app, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", namenode.ErrConfiguration, err)
	}

	logCfg := cfg.Logging
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logFormat != "" {
		logCfg.Format = logging.Format(logFormat)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %v", namenode.ErrConfiguration, err)
	}

	if err := metrics.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	opts := namenode.Options{}
	if cfg.History.Path != "" {
		j, err := history.Open(cfg.History.Path, logger.Named("history"))
		if err != nil {
			// An unusable journal only disables history.
			logger.Warn("action history disabled", zap.String("path", cfg.History.Path), zap.Error(err))
		} else {
			a.journal = j
			opts.Journal = j
		}
	}

	p := platform.Detect(cfg, logger)
	logger.Debug("platform selected",
		zap.String("platform", p.Name),
		zap.String("config", path))
	a.orch = namenode.New(cfg, p, logger, opts)
	return a, nil
}

// close flushes metrics to the textfile collector and releases resources.
func (a *app) close() {
	if a.cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
			a.logger.Warn("failed to write metrics textfile",
				zap.String("path", a.cfg.Metrics.TextfilePath), zap.Error(err))
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close action history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
