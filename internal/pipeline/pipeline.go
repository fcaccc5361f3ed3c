// Package pipeline runs the staged enrichment workflow over one article URL:
// fetch and extract, summarize with a validation retry loop, score embedded
// links, find corroborating coverage, categorize, translate, and deliver the
// result to the downstream webhook.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/search"
)

const (
	// DefaultMaxRetries bounds the summary validation loop.
	DefaultMaxRetries = 3
	// DefaultLinkSlots bounds the embedded-link scoring fan-out.
	DefaultLinkSlots = 8

	// linkTextLimit is how much visible text a scored link contributes.
	linkTextLimit = 1500
	// searchMaxResults caps each corroboration query.
	searchMaxResults = 5
)

// Fetcher issues rendered page loads. *browser.Pool satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*browser.Page, error)
	FetchText(ctx context.Context, rawURL string, limit int) (string, error)
}

// Gate answers robots.txt and per-domain pacing questions.
type Gate interface {
	CanFetch(ctx context.Context, rawURL string) (bool, error)
	WaitForSlot(ctx context.Context, rawURL string) error
}

// PromptSource loads the active prompt bundle.
type PromptSource interface {
	LoadActiveBundle(ctx context.Context) (*models.PromptBundle, error)
}

// CategorySource loads the category name to external id map.
type CategorySource interface {
	Mapping(ctx context.Context) (map[string]string, error)
}

// Deliverer posts the finished article downstream.
type Deliverer interface {
	Deliver(ctx context.Context, sourceURL string, article *models.NewsArticle) error
}

// Deps collects the executor's collaborators.
type Deps struct {
	Gate       Gate
	Browser    Fetcher
	LLM        llm.Generator
	Search     search.Searcher
	Prompts    PromptSource
	Categories CategorySource
	Sink       Deliverer
	Logger     logger.Logger

	// LinkSlots overrides DefaultLinkSlots when > 0.
	LinkSlots int
}

// Executor runs the workflow.
type Executor struct {
	deps Deps
	now  func() time.Time
}

// New builds an Executor. Construction never fails; use Verify before
// serving traffic.
func New(deps Deps) *Executor {
	if deps.LinkSlots <= 0 {
		deps.LinkSlots = DefaultLinkSlots
	}
	return &Executor{deps: deps, now: time.Now}
}

// Verify checks that every collaborator is wired. The health endpoint calls
// this so a misconfigured deployment reports unhealthy instead of failing on
// the first job.
func (e *Executor) Verify() error {
	switch {
	case e.deps.Gate == nil:
		return errors.New("pipeline: governance gate not configured")
	case e.deps.Browser == nil:
		return errors.New("pipeline: browser pool not configured")
	case e.deps.LLM == nil:
		return errors.New("pipeline: llm client not configured")
	case e.deps.Search == nil:
		return errors.New("pipeline: search client not configured")
	case e.deps.Prompts == nil:
		return errors.New("pipeline: prompt source not configured")
	case e.deps.Categories == nil:
		return errors.New("pipeline: category source not configured")
	case e.deps.Sink == nil:
		return errors.New("pipeline: webhook sink not configured")
	case e.deps.Logger == nil:
		return errors.New("pipeline: logger not configured")
	}
	return nil
}

type stage struct {
	name string
	run  func(ctx context.Context, state *models.WorkflowState)
}

// stages returns the workflow in topological order. The summary retry loop
// is folded into a single stage.
func (e *Executor) stages() []stage {
	return []stage{
		{"load_config", e.loadConfig},
		{"fetch", e.fetch},
		{"extract_links", e.extractLinks},
		{"summarize", e.summarize},
		{"check_embedded_links", e.checkEmbeddedLinks},
		{"find_other_sources", e.findOtherSources},
		{"categorize_article", e.categorizeArticle},
		{"translate_article", e.translateArticle},
		{"extract_country", e.extractCountry},
		{"calculate_reading_time", e.calculateReadingTime},
		{"generate_seo", e.generateSEO},
		{"notify_webhook", e.notifyWebhook},
	}
}

// Run executes the workflow for one URL. A fatal stage error is recorded on
// the returned state; Run itself never fails.
func (e *Executor) Run(ctx context.Context, sourceURL string, maxRetries int) *models.WorkflowState {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	state := &models.WorkflowState{
		SourceURL:  sourceURL,
		MaxRetries: maxRetries,
		Article:    &models.NewsArticle{},
	}

	log := e.deps.Logger.With(logger.String("source_url", sourceURL))
	for _, s := range e.stages() {
		if state.Failed() {
			log.Debug("Skipping stage after failure", logger.String("stage", s.name))
			continue
		}
		start := e.now()
		s.run(ctx, state)
		if state.Failed() {
			log.Warn("Stage failed",
				logger.String("stage", s.name),
				logger.String("error", state.ErrorMessage))
			continue
		}
		log.Debug("Stage completed",
			logger.String("stage", s.name),
			logger.Duration("elapsed", e.now().Sub(start)))
	}
	return state
}
