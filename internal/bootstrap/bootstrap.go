// Package bootstrap handles process initialization and lifecycle for the
// three NewsAgent binaries: api, scheduler, and worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/newsagent/internal/config"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/queue"
)

const shutdownGrace = 10 * time.Second

// setup loads config, builds the logger, and connects Redis. Every binary
// starts here.
func setup(ctx context.Context) (*config.Config, logger.Logger, *redis.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("validate config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	client, err := queue.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return cfg, log, client, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveHTTP runs the router until ctx is cancelled, then drains in-flight
// requests within the grace period.
func serveHTTP(ctx context.Context, router *gin.Engine, port int, log logger.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}
