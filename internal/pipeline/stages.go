package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/extract"
	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

// render substitutes {name} placeholders in a prompt template.
func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func (e *Executor) loadConfig(ctx context.Context, state *models.WorkflowState) {
	bundle, err := e.deps.Prompts.LoadActiveBundle(ctx)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Configuration error: %v", err)
		return
	}
	mapping, err := e.deps.Categories.Mapping(ctx)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Configuration error: %v", err)
		return
	}
	state.ActivePrompts = bundle
	state.CategoryMapping = mapping
}

func (e *Executor) fetch(ctx context.Context, state *models.WorkflowState) {
	allowed, err := e.deps.Gate.CanFetch(ctx, state.SourceURL)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Robots check failed: %v", err)
		return
	}
	if !allowed {
		state.ErrorMessage = fmt.Sprintf("Blocked by robots.txt: %s", state.SourceURL)
		return
	}
	if err := e.deps.Gate.WaitForSlot(ctx, state.SourceURL); err != nil {
		state.ErrorMessage = fmt.Sprintf("Rate limit wait interrupted: %v", err)
		return
	}

	page, err := e.deps.Browser.Fetch(ctx, state.SourceURL, browser.DefaultNavigateTimeout)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Fetch failed: %v", err)
		return
	}

	res, err := extract.FromHTML(page.HTML, state.SourceURL, page.Title)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Content extraction failed for %s: %v", state.SourceURL, err)
		return
	}

	state.CleanedArticleText = res.Text
	state.CleanedArticleHTML = res.HTML
	state.Article.Title = res.Title
	state.Article.Content = res.Text
	state.Article.Author = res.Author
	state.Article.PublishedDate = res.PublishedDate
	state.Article.TopImage = res.TopImage
}

func (e *Executor) extractLinks(ctx context.Context, state *models.WorkflowState) {
	if state.CleanedArticleHTML == "" {
		return
	}
	links, err := extract.Links(state.CleanedArticleHTML, state.SourceURL)
	if err != nil {
		e.deps.Logger.Warn("Embedded link extraction failed", logger.Error(err))
		return
	}
	state.Article.EmbeddedLinks = links
}

// summarize runs the generate/validate loop until the validator approves or
// the retry budget is spent, then keeps the highest-scoring attempt.
func (e *Executor) summarize(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	for {
		user := render(prompts.SummaryInitialUser, map[string]string{
			"title":        state.Article.Title,
			"article_text": state.CleanedArticleText,
		})
		if state.ValidationCount > 0 && state.ValidationResult != nil {
			user = render(prompts.SummaryRetryUser, map[string]string{
				"title":            state.Article.Title,
				"article_text":     state.CleanedArticleText,
				"previous_summary": state.Article.Summary,
				"feedback":         state.ValidationResult.Feedback,
			})
		}

		summary, err := e.deps.LLM.Text(ctx, prompts.SummarySystem, user)
		if err != nil {
			state.ErrorMessage = fmt.Sprintf("Summary generation failed: %v", err)
			return
		}
		state.Article.Summary = summary
		state.ValidationResult = nil

		var verdict models.ValidationResult
		err = e.deps.LLM.Structured(ctx, prompts.ValidationSystem,
			render(prompts.ValidationUser, map[string]string{
				"article_text": state.CleanedArticleText,
				"summary":      summary,
			}),
			llm.ValidationTool, &verdict)
		if err != nil {
			state.ErrorMessage = fmt.Sprintf("Summary validation failed: %v", err)
			return
		}

		state.SummaryAttempts = append(state.SummaryAttempts, models.SummaryAttempt{
			Summary:    summary,
			Validation: verdict,
		})
		state.ValidationCount = len(state.SummaryAttempts)
		state.ValidationResult = &verdict

		if verdict.IsValid || state.ValidationCount >= state.MaxRetries {
			break
		}
	}

	e.selectBestSummary(state)
}

// selectBestSummary keeps the attempt with the greatest semantic score. A
// missing score counts as zero, so any scored attempt beats an unscored one.
func (e *Executor) selectBestSummary(state *models.WorkflowState) {
	if len(state.SummaryAttempts) == 0 {
		return
	}
	best := state.SummaryAttempts[0]
	bestScore := scoreOf(best.Validation)
	for _, attempt := range state.SummaryAttempts[1:] {
		if s := scoreOf(attempt.Validation); s > bestScore {
			best = attempt
			bestScore = s
		}
	}
	state.Article.Summary = best.Summary
	verdict := best.Validation
	state.ValidationResult = &verdict
}

func scoreOf(v models.ValidationResult) float64 {
	if v.SemanticScore == nil {
		return 0
	}
	return *v.SemanticScore
}

func (e *Executor) findOtherSources(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	var queryData models.SearchQueryData
	err := e.deps.LLM.Structured(ctx, prompts.SearchSystem,
		render(prompts.SearchUser, map[string]string{
			"title":          state.Article.Title,
			"summary":        state.Article.Summary,
			"published_date": state.Article.PublishedDate,
		}),
		llm.SearchQueryTool, &queryData)
	if err != nil {
		e.deps.Logger.Warn("Search query generation failed", logger.Error(err))
		return
	}
	state.SearchQueryData = &queryData

	seen := map[string]bool{state.SourceURL: true}
	for _, query := range queryData.Queries {
		results, err := e.deps.Search.Search(ctx, query, searchMaxResults)
		if err != nil {
			e.deps.Logger.Warn("Corroboration search failed",
				logger.String("query", query),
				logger.Error(err))
			continue
		}
		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			state.OtherSources = append(state.OtherSources, r)
		}
	}
}

func (e *Executor) categorizeArticle(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	var out struct {
		Categories []string `json:"categories"`
	}
	err := e.deps.LLM.Structured(ctx, prompts.CategorizationSystem,
		render(prompts.CategorizationUser, map[string]string{
			"title":   state.Article.Title,
			"summary": state.Article.Summary,
		}),
		llm.CategoryTool, &out)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("Categorization failed: %v", err)
		return
	}

	normalized := make(map[string]string, len(state.CategoryMapping))
	for name, id := range state.CategoryMapping {
		normalized[normalizeCategory(name)] = id
	}

	for _, name := range out.Categories {
		id, ok := state.CategoryMapping[name]
		if !ok {
			id, ok = normalized[normalizeCategory(name)]
		}
		if !ok {
			e.deps.Logger.Warn("Unmatched category skipped", logger.String("category", name))
			continue
		}
		state.Article.Category = append(state.Article.Category, name)
		state.Article.CategoryIDs = append(state.Article.CategoryIDs, id)
	}
}

// normalizeCategory lowercases and strips punctuation so "**Market News**"
// still resolves against the mapping.
func normalizeCategory(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *Executor) translateArticle(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	var out struct {
		TitleAr   string `json:"title_ar"`
		SummaryAr string `json:"summary_ar"`
		ContentAr string `json:"content_ar"`
	}
	err := e.deps.LLM.Structured(ctx, prompts.TranslationSystem,
		render(prompts.TranslationUser, map[string]string{
			"title":   state.Article.Title,
			"summary": state.Article.Summary,
			"content": state.CleanedArticleText,
		}),
		llm.TranslationTool, &out)
	if err != nil {
		e.deps.Logger.Warn("Translation failed", logger.Error(err))
		return
	}
	state.Article.TitleAr = out.TitleAr
	state.Article.SummaryAr = out.SummaryAr
	state.Article.ContentAr = out.ContentAr
}

func (e *Executor) extractCountry(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	var out struct {
		Countries []string `json:"countries"`
	}
	err := e.deps.LLM.Structured(ctx, prompts.CountryExtractionSystem,
		render(prompts.CountryExtractionUser, map[string]string{
			"title":   state.Article.Title,
			"summary": state.Article.Summary,
		}),
		llm.CountryTool, &out)
	if err != nil {
		e.deps.Logger.Warn("Country extraction failed", logger.Error(err))
		return
	}
	state.Article.Countries = out.Countries
}

func (e *Executor) calculateReadingTime(_ context.Context, state *models.WorkflowState) {
	state.Article.ReadingTime = readingMinutes(state.Article.Content)
	state.Article.ReadingTimeAr = readingMinutes(state.Article.ContentAr)
}

// readingMinutes is ceil(words / 200), zero for empty text.
func readingMinutes(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words + 199) / 200
}

func (e *Executor) notifyWebhook(ctx context.Context, state *models.WorkflowState) {
	if err := e.deps.Sink.Deliver(ctx, state.SourceURL, state.Article); err != nil {
		e.deps.Logger.Warn("Webhook delivery failed", logger.Error(err))
	}
}
