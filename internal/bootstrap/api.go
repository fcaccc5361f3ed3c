package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/newsagent/internal/api"
	"github.com/jonesrussell/newsagent/internal/config"
	"github.com/jonesrussell/newsagent/internal/handlers"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/queue"
)

// StartAPI runs the Job API process.
func StartAPI() error {
	ctx, stop := signalContext()
	defer stop()

	cfg, log, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	q := queue.New(client, cfg.Redis.QueueName, cfg.Redis.DLQName, cfg.Redis.StatusTTL, log)

	h := handlers.NewJobHandler(q, verifyPipelineConfig(cfg), cfg.Pipeline.MaxRetries, log)
	router := api.NewJobRouter(h, cfg.Server.APIKey)

	log.Info("Job API starting",
		logger.String("queue", cfg.Redis.QueueName),
		logger.String("dlq", cfg.Redis.DLQName),
	)
	return serveHTTP(ctx, router, cfg.Server.APIPort, log)
}

// verifyPipelineConfig checks that a worker spawned with this configuration
// could construct the full pipeline. Backs the health endpoint's graph_logic
// field without connecting to the browser or model provider.
func verifyPipelineConfig(cfg *config.Config) func() error {
	return func() error {
		switch {
		case cfg.Browser.WSEndpoint == "":
			return errors.New("BROWSER_WS_ENDPOINT is not configured")
		case cfg.LLM.APIKey == "":
			return errors.New("ANTHROPIC_API_KEY is not configured")
		case cfg.Search.APIKey == "":
			return errors.New("TAVILY_API_KEY is not configured")
		case cfg.Webhook.URL == "":
			return errors.New("WEBHOOK_URL is not configured")
		case cfg.Pipeline.MaxRetries <= 0:
			return fmt.Errorf("invalid retry budget %d", cfg.Pipeline.MaxRetries)
		}
		return nil
	}
}
