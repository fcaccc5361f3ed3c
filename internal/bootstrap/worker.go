package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/config"
	"github.com/jonesrussell/newsagent/internal/governance"
	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/notifier"
	"github.com/jonesrussell/newsagent/internal/pipeline"
	"github.com/jonesrussell/newsagent/internal/queue"
	"github.com/jonesrussell/newsagent/internal/search"
	"github.com/jonesrussell/newsagent/internal/store"
	"github.com/jonesrussell/newsagent/internal/webhook"
	"github.com/jonesrussell/newsagent/internal/worker"
)

// StartWorker runs the queue consumer process.
func StartWorker() error {
	ctx, stop := signalContext()
	defer stop()

	cfg, log, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Browser.WSEndpoint == "" {
		return errors.New("BROWSER_WS_ENDPOINT is required for the worker")
	}

	db, err := store.Connect(store.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	sources := store.NewSourceRepository(db, log)
	prompts := store.NewPromptRepository(db, log)
	categories := store.NewCategoryRepository(db)
	recipients := store.NewRecipientRepository(db)

	gate := governance.New(client, sources, cfg.Pipeline.UserAgent, cfg.Pipeline.DomainDelay, log)

	pool, err := browser.Connect(cfg.Browser.WSEndpoint, cfg.Pipeline.UserAgent, cfg.Browser.MaxSlots, log)
	if err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if closeErr := pool.Close(); closeErr != nil {
			log.Error("Failed to close browser", logger.Error(closeErr))
		}
	}()

	exec := pipeline.New(pipeline.Deps{
		Gate:       gate,
		Browser:    pool,
		LLM:        llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, log, llm.WithMaxTokens(cfg.LLM.MaxTokens)),
		Search:     search.NewClient(cfg.Search.APIKey, "", log),
		Prompts:    prompts,
		Categories: categories,
		Sink:       webhook.NewSink(cfg.Webhook.URL, cfg.Webhook.Secret, log),
		Logger:     log,
	})
	if err := exec.Verify(); err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}

	q := queue.New(client, cfg.Redis.QueueName, cfg.Redis.DLQName, cfg.Redis.StatusTTL, log)

	w := worker.New(q, exec, buildNotifier(cfg, recipients, log), log)
	return w.Run(ctx)
}

// buildNotifier returns the SMTP notifier, or a nop when SMTP is not
// configured.
func buildNotifier(cfg *config.Config, recipients notifier.RecipientSource, log logger.Logger) notifier.Notifier {
	if cfg.SMTP.Server == "" {
		log.Warn("SMTP not configured, failure alerts disabled")
		return notifier.NopNotifier{}
	}
	return notifier.NewSMTPNotifier(
		cfg.SMTP.Server, cfg.SMTP.Port,
		cfg.SMTP.Email, cfg.SMTP.Password,
		recipients, log,
	)
}
