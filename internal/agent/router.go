// Package agent exposes the lifecycle orchestrator over a local HTTP API so
// that a cluster manager can drive a NameNode host without shelling in.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/metrics"
)

// RouterConfig holds the agent's collaborators.
type RouterConfig struct {
	Orchestrator Orchestrator

	// Journal may be nil, in which case /v1/history is not served.
	Journal HistoryLister

	Logger   *zap.Logger
	Hostname string

	// ActionRate and ActionBurst bound action requests. A rate of zero disables the limit.
	ActionRate  float64
	ActionBurst int
}

// SetupRouter builds the gin engine.
//
// Routes:
//   - POST /v1/actions/:action runs a lifecycle action
//   - GET /v1/history lists recorded actions
//   - GET /health/live reports liveness
//   - GET /metrics serves Prometheus metrics
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Metrics())
	router.Use(RequestLogger(cfg.Logger))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	router.GET("/health/live", liveness(cfg.Hostname))

	v1 := router.Group("/v1")
	{
		actions := []gin.HandlerFunc{NewActionHandler(cfg.Orchestrator).Run}
		if cfg.ActionRate > 0 {
			actions = append([]gin.HandlerFunc{RateLimit(cfg.ActionRate, cfg.ActionBurst)}, actions...)
		}
		v1.POST("/actions/:action", actions...)
		if cfg.Journal != nil {
			v1.GET("/history", NewHistoryHandler(cfg.Journal).List)
		}
	}

	return router
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, listen string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent listening", zap.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("agent server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down agent")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down agent: %w", err)
	}
	return nil
}
