// Package scheduler runs the discovery loop: every tick it checks the due
// listing pages, extracts candidate article URLs, dedups them against the
// article store, and submits the new ones to the Job API.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/extract"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/metrics"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/notifier"
)

const (
	// DefaultTick is the discovery loop interval.
	DefaultTick = time.Minute
	// DefaultSlots bounds concurrent source checks.
	DefaultSlots = 3
)

// SourceStore is the slice of the source repository the scheduler needs.
type SourceStore interface {
	ListActive(ctx context.Context) ([]models.Source, error)
	GetByID(ctx context.Context, id string) (*models.Source, error)
	TouchLastRun(ctx context.Context, id string, at time.Time) error
}

// ArticleStore is the slice of the article repository the scheduler needs.
type ArticleStore interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	Insert(ctx context.Context, article *models.Article) error
	MarkSubmissionFailed(ctx context.Context, id string) error
}

// Gate answers robots.txt and pacing questions for listing fetches.
type Gate interface {
	CanFetch(ctx context.Context, rawURL string) (bool, error)
	WaitForSlot(ctx context.Context, rawURL string) error
}

// Fetcher renders listing pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*browser.Page, error)
}

// Submitter hands a discovered URL to the Job API.
type Submitter interface {
	Submit(ctx context.Context, sourceURL string) error
}

// Deps collects the scheduler's collaborators.
type Deps struct {
	Sources  SourceStore
	Articles ArticleStore
	Gate     Gate
	Browser  Fetcher
	Submit   Submitter
	Notifier notifier.Notifier
	Logger   logger.Logger

	// Tick and Slots override the defaults when > 0.
	Tick  time.Duration
	Slots int
}

// Scheduler is the discovery loop.
type Scheduler struct {
	deps  Deps
	slots chan struct{}
	now   func() time.Time
}

// New builds a Scheduler.
func New(deps Deps) *Scheduler {
	if deps.Tick <= 0 {
		deps.Tick = DefaultTick
	}
	if deps.Slots <= 0 {
		deps.Slots = DefaultSlots
	}
	return &Scheduler{
		deps:  deps,
		slots: make(chan struct{}, deps.Slots),
		now:   time.Now,
	}
}

// Run ticks until the context is cancelled. Each tick waits for its spawned
// source checks, so ticks never pile up.
func (s *Scheduler) Run(ctx context.Context) error {
	s.deps.Logger.Info("Discovery scheduler started",
		logger.Duration("tick", s.deps.Tick))

	ticker := time.NewTicker(s.deps.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.deps.Logger.Info("Discovery scheduler stopping")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick dispatches one discovery pass over all due sources.
func (s *Scheduler) Tick(ctx context.Context) {
	sources, err := s.deps.Sources.ListActive(ctx)
	if err != nil {
		s.deps.Logger.Error("Failed to list active sources", logger.Error(err))
		return
	}

	now := s.now().UTC()
	var wg sync.WaitGroup
	for _, src := range sources {
		if !src.Due(now) {
			continue
		}
		wg.Add(1)
		go func(src models.Source) {
			defer wg.Done()
			select {
			case s.slots <- struct{}{}:
				defer func() { <-s.slots }()
			case <-ctx.Done():
				return
			}
			s.checkSource(ctx, &src)
		}(src)
	}
	wg.Wait()
}

// RunSource forces a discovery pass for one source regardless of its
// interval. Backs the run-now endpoint.
func (s *Scheduler) RunSource(ctx context.Context, id string) error {
	src, err := s.deps.Sources.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load source %s: %w", id, err)
	}
	s.checkSource(ctx, src)
	return nil
}

// checkSource performs one listing fetch and submission pass. last_run_at is
// always advanced, including on robots denial, so a blocked source does not
// get rechecked every tick.
func (s *Scheduler) checkSource(ctx context.Context, src *models.Source) {
	log := s.deps.Logger.With(
		logger.String("source_id", src.ID),
		logger.String("listing_url", src.ListingURL))

	defer func() {
		if err := s.deps.Sources.TouchLastRun(ctx, src.ID, s.now().UTC()); err != nil {
			log.Warn("Failed to update last run time", logger.Error(err))
		}
	}()

	allowed, err := s.deps.Gate.CanFetch(ctx, src.ListingURL)
	if err != nil {
		s.reportFailure(ctx, src, fmt.Sprintf("robots check failed: %v", err))
		return
	}
	if !allowed {
		log.Info("Listing blocked by robots.txt, skipping")
		return
	}
	if err := s.deps.Gate.WaitForSlot(ctx, src.ListingURL); err != nil {
		log.Warn("Rate limit wait interrupted", logger.Error(err))
		return
	}

	page, err := s.deps.Browser.Fetch(ctx, src.ListingURL, browser.DefaultNavigateTimeout)
	if err != nil {
		s.reportFailure(ctx, src, fmt.Sprintf("listing fetch failed: %v", err))
		return
	}

	candidates, err := extract.ListingURLs(page.HTML, src.ListingURL, src.URLPattern)
	if err != nil {
		s.reportFailure(ctx, src, fmt.Sprintf("listing parse failed: %v", err))
		return
	}
	metrics.URLsDiscovered.Add(float64(len(candidates)))
	if len(candidates) == 0 {
		log.Debug("No candidate URLs on listing")
		return
	}

	existing, err := s.deps.Articles.ExistingURLs(ctx, candidates)
	if err != nil {
		s.reportFailure(ctx, src, fmt.Sprintf("dedup query failed: %v", err))
		return
	}

	var submitted, skipped int
	for _, rawURL := range candidates {
		if existing[rawURL] {
			skipped++
			continue
		}
		article := &models.Article{SourceID: src.ID, URL: rawURL}
		if err := s.deps.Articles.Insert(ctx, article); err != nil {
			// A concurrent pass already claimed the URL.
			log.Debug("Skipping URL", logger.String("url", rawURL), logger.Error(err))
			skipped++
			continue
		}
		if err := s.deps.Submit.Submit(ctx, rawURL); err != nil {
			log.Warn("Job submission failed",
				logger.String("url", rawURL),
				logger.Error(err))
			if markErr := s.deps.Articles.MarkSubmissionFailed(ctx, article.ID); markErr != nil {
				log.Warn("Failed to mark submission failure", logger.Error(markErr))
			}
			continue
		}
		submitted++
		metrics.URLsSubmitted.Inc()
	}

	log.Info("Discovery pass finished",
		logger.Int("candidates", len(candidates)),
		logger.Int("submitted", submitted),
		logger.Int("skipped", skipped))
}

// reportFailure logs and emails a discovery failure under a synthetic job id
// so operators can tell scheduler alerts from pipeline alerts.
func (s *Scheduler) reportFailure(ctx context.Context, src *models.Source, msg string) {
	s.deps.Logger.Error("Discovery failed",
		logger.String("source_id", src.ID),
		logger.String("error", msg))

	if err := s.deps.Notifier.NotifyFailure(ctx, notifier.Alert{
		JobID:        "scheduler-" + src.ID,
		SourceURL:    src.ListingURL,
		ErrorMessage: msg,
		OccurredAt:   s.now().UTC(),
	}); err != nil {
		s.deps.Logger.Warn("Failure notification not sent", logger.Error(err))
	}
}
