package pipeline

import (
	"context"
	"sync"

	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

// checkEmbeddedLinks scores every embedded link against the summary with a
// bounded-parallel fan-out. A link that cannot be fetched or scored keeps a
// zero score; the stage itself never fails.
func (e *Executor) checkEmbeddedLinks(ctx context.Context, state *models.WorkflowState) {
	links := state.Article.EmbeddedLinks
	if len(links) == 0 {
		return
	}

	slots := make(chan struct{}, e.deps.LinkSlots)
	var wg sync.WaitGroup
	for i := range links {
		wg.Add(1)
		go func(link *models.EmbeddedLink) {
			defer wg.Done()
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				zero := 0.0
				link.RelevanceScore = &zero
				return
			}
			score := e.scoreLink(ctx, state, link)
			link.RelevanceScore = &score
		}(&links[i])
	}
	wg.Wait()
}

func (e *Executor) scoreLink(ctx context.Context, state *models.WorkflowState, link *models.EmbeddedLink) float64 {
	allowed, err := e.deps.Gate.CanFetch(ctx, link.URL)
	if err != nil || !allowed {
		e.deps.Logger.Debug("Link fetch not permitted, scoring zero",
			logger.String("url", link.URL),
			logger.Error(err))
		return 0.0
	}
	if err := e.deps.Gate.WaitForSlot(ctx, link.URL); err != nil {
		e.deps.Logger.Debug("Link slot wait aborted, scoring zero",
			logger.String("url", link.URL),
			logger.Error(err))
		return 0.0
	}

	text, err := e.deps.Browser.FetchText(ctx, link.URL, linkTextLimit)
	if err != nil {
		e.deps.Logger.Debug("Link fetch failed, scoring zero",
			logger.String("url", link.URL),
			logger.Error(err))
		return 0.0
	}

	prompts := state.ActivePrompts
	var out struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	err = e.deps.LLM.Structured(ctx, prompts.RelevanceSystem,
		render(prompts.RelevanceUser, map[string]string{
			"summary":   state.Article.Summary,
			"link_text": link.HyperlinkText,
			"link_body": text,
		}),
		llm.RelevanceTool, &out)
	if err != nil {
		e.deps.Logger.Debug("Link scoring failed, scoring zero",
			logger.String("url", link.URL),
			logger.Error(err))
		return 0.0
	}
	return clampScore(out.Score)
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 10:
		return 10
	default:
		return s
	}
}
