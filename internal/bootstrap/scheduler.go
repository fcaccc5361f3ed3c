package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/newsagent/internal/api"
	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/governance"
	"github.com/jonesrussell/newsagent/internal/handlers"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/scheduler"
	"github.com/jonesrussell/newsagent/internal/store"
)

// StartScheduler runs the discovery loop and the scheduler HTTP surface in
// one process.
func StartScheduler() error {
	ctx, stop := signalContext()
	defer stop()

	cfg, log, client, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Server.MainAPIURL == "" {
		return errors.New("MAIN_API_URL is required for the scheduler")
	}
	if cfg.Browser.WSEndpoint == "" {
		return errors.New("BROWSER_WS_ENDPOINT is required for the scheduler")
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

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sources := store.NewSourceRepository(db, log)
	articles := store.NewArticleRepository(db, log)
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

	sched := scheduler.New(scheduler.Deps{
		Sources:  sources,
		Articles: articles,
		Gate:     gate,
		Browser:  pool,
		Submit:   scheduler.NewAPISubmitter(cfg.Server.MainAPIURL, cfg.Server.APIKey),
		Notifier: buildNotifier(cfg, recipients, log),
		Logger:   log,
		Tick:     cfg.Scheduler.TickInterval,
		Slots:    cfg.Scheduler.MaxConcurrent,
	})

	router := api.NewSchedulerRouter(api.SchedulerRouterDeps{
		Sources:       handlers.NewSourceHandler(sources, sched, log),
		Articles:      handlers.NewArticleHandler(articles, cfg.Scheduler.SubmissionSourceID, log),
		Admin:         handlers.NewAdminHandler(prompts, categories, recipients, log),
		APIKey:        cfg.Server.APIKey,
		WebhookSecret: cfg.Webhook.Secret,
		Ping:          db.Ping,
	})

	loopErr := make(chan error, 1)
	go func() { loopErr <- sched.Run(ctx) }()

	if err := serveHTTP(ctx, router, cfg.Server.SchedulerPort, log); err != nil {
		return err
	}
	return <-loopErr
}
