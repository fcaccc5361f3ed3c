package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/browser"
	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/search"
)

const sourceURL = "https://news.example/story-1"

var articleBody = strings.Repeat("The council approved the new transit budget after weeks of negotiation. ", 8)

var articleHTML = `<html><head>
	<meta property="og:title" content="Budget Approved">
	<meta property="og:image" content="https://news.example/budget.jpg">
	<meta name="author" content="R. Writer">
	<meta property="article:published_time" content="2026-08-20T09:00:00Z">
</head><body><div class="content">
	<p>` + articleBody + `</p>
	<p>Related: <a href="/background">budget history</a> and
	   <a href="https://other.example/context">outside context</a>.</p>
</div></body></html>`

type fakeGate struct {
	mu       sync.Mutex
	allowed  bool
	canErr   error
	waitErr  error
	canCalls int
	canURLs  []string
	deny     map[string]bool
}

func (g *fakeGate) CanFetch(_ context.Context, rawURL string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canCalls++
	g.canURLs = append(g.canURLs, rawURL)
	if g.deny[rawURL] {
		return false, nil
	}
	return g.allowed, g.canErr
}
func (g *fakeGate) WaitForSlot(context.Context, string) error { return g.waitErr }

type fakeBrowser struct {
	mu       sync.Mutex
	pageHTML string
	pageErr  error
	linkText map[string]string
	linkErr  map[string]error
	fetched  []string
}

func (b *fakeBrowser) Fetch(_ context.Context, rawURL string, _ time.Duration) (*browser.Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return &browser.Page{HTML: b.pageHTML, Title: "Tab Title"}, nil
}

func (b *fakeBrowser) FetchText(_ context.Context, rawURL string, _ int) (string, error) {
	b.mu.Lock()
	b.fetched = append(b.fetched, rawURL)
	b.mu.Unlock()
	if err, ok := b.linkErr[rawURL]; ok {
		return "", err
	}
	return b.linkText[rawURL], nil
}

type fakeLLM struct {
	mu            sync.Mutex
	summaries     []string
	textErr       error
	validations   []models.ValidationResult
	structured    map[string]any
	structuredErr map[string]error
}

func (f *fakeLLM) Text(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return "", f.textErr
	}
	if len(f.summaries) == 0 {
		return "default summary", nil
	}
	s := f.summaries[0]
	if len(f.summaries) > 1 {
		f.summaries = f.summaries[1:]
	}
	return s, nil
}

func (f *fakeLLM) Structured(_ context.Context, _, _ string, tool llm.Tool, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.structuredErr[tool.Name]; ok {
		return err
	}

	var payload any
	if tool.Name == llm.ValidationTool.Name && len(f.validations) > 0 {
		payload = f.validations[0]
		if len(f.validations) > 1 {
			f.validations = f.validations[1:]
		}
	} else {
		var ok bool
		payload, ok = f.structured[tool.Name]
		if !ok {
			return errors.New("no scripted payload for " + tool.Name)
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type fakeSearch struct {
	results map[string][]models.SearchResult
	err     error
	queries []string
}

func (s *fakeSearch) Search(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

var _ search.Searcher = (*fakeSearch)(nil)

type fakePrompts struct{ err error }

func (p fakePrompts) LoadActiveBundle(context.Context) (*models.PromptBundle, error) {
	if p.err != nil {
		return nil, p.err
	}
	prompts := map[string]string{}
	for _, name := range models.RequiredPromptNames {
		prompts[name] = "prompt " + name
	}
	return models.BundleFromMap(prompts)
}

type fakeCategories struct{ mapping map[string]string }

func (c fakeCategories) Mapping(context.Context) (map[string]string, error) {
	return c.mapping, nil
}

type fakeSink struct {
	mu        sync.Mutex
	delivered []*models.NewsArticle
	err       error
}

func (s *fakeSink) Deliver(_ context.Context, _ string, article *models.NewsArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, article)
	return s.err
}

func approve(score float64) models.ValidationResult {
	return models.ValidationResult{IsValid: true, SemanticScore: &score, Feedback: "good"}
}

func reject(score float64, feedback string) models.ValidationResult {
	return models.ValidationResult{IsValid: false, SemanticScore: &score, Feedback: feedback}
}

func defaultStructured() map[string]any {
	return map[string]any{
		llm.RelevanceTool.Name:   map[string]any{"score": 7.5, "reason": "related"},
		llm.SearchQueryTool.Name: map[string]any{"queries": []string{"transit budget vote"}},
		llm.CategoryTool.Name:    map[string]any{"categories": []string{"Market News"}},
		llm.TranslationTool.Name: map[string]any{
			"title_ar": "عنوان", "summary_ar": "ملخص", "content_ar": "نص المقال الكامل",
		},
		llm.CountryTool.Name: map[string]any{"countries": []string{"Canada"}},
		llm.SEOTool.Name: map[string]any{
			"meta_title":       "Budget Approved",
			"meta_description": "Council approves transit budget.",
			"slug":             "council-approves-new-transit-budget-after-talks",
			"primary_keywords": []string{"budget", "transit", "council"},
		},
	}
}

func newTestExecutor(gate *fakeGate, br *fakeBrowser, model *fakeLLM, srch *fakeSearch, sink *fakeSink) *Executor {
	e := New(Deps{
		Gate:       gate,
		Browser:    br,
		LLM:        model,
		Search:     srch,
		Prompts:    fakePrompts{},
		Categories: fakeCategories{mapping: map[string]string{"Market News": "id-1"}},
		Sink:       sink,
		Logger:     logger.NewNopLogger(),
	})
	e.now = func() time.Time { return time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRunHappyPath(t *testing.T) {
	gate := &fakeGate{allowed: true}
	br := &fakeBrowser{
		pageHTML: articleHTML,
		linkText: map[string]string{
			"https://news.example/background": "history of the budget process",
			"https://other.example/context":   "analysis of transit funding",
		},
	}
	model := &fakeLLM{
		summaries:   []string{"The council approved the transit budget."},
		validations: []models.ValidationResult{approve(9.0)},
		structured:  defaultStructured(),
	}
	srch := &fakeSearch{results: map[string][]models.SearchResult{
		"transit budget vote": {
			{Title: "Other coverage", URL: "https://elsewhere.example/story"},
			{Title: "Self", URL: sourceURL},
		},
	}}
	sink := &fakeSink{}

	state := newTestExecutor(gate, br, model, srch, sink).Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	article := state.Article

	assert.Equal(t, "Budget Approved", article.Title)
	assert.Equal(t, "R. Writer", article.Author)
	assert.Equal(t, "The council approved the transit budget.", article.Summary)
	assert.Equal(t, 1, state.ValidationCount)

	require.Len(t, article.EmbeddedLinks, 2)
	for _, link := range article.EmbeddedLinks {
		require.NotNil(t, link.RelevanceScore)
		assert.InDelta(t, 7.5, *link.RelevanceScore, 1e-9)
	}

	require.Len(t, state.OtherSources, 1)
	assert.Equal(t, "https://elsewhere.example/story", state.OtherSources[0].URL)

	assert.Equal(t, []string{"Market News"}, article.Category)
	assert.Equal(t, []string{"id-1"}, article.CategoryIDs)
	assert.Equal(t, "عنوان", article.TitleAr)
	assert.Equal(t, []string{"Canada"}, article.Countries)
	assert.Equal(t, 1, article.ReadingTime)

	require.NotNil(t, article.SEO)
	assert.Equal(t, "council-approves-new-transit-budget-after-talks", article.SEO.Slug)
	ld := article.SEO.JSONLDSchema
	require.NotNil(t, ld)
	assert.Equal(t, "NewsArticle", ld["@type"])
	assert.Equal(t, "2026-08-20T09:00:00Z", ld["datePublished"])
	assert.Equal(t, "2026-08-21T12:00:00Z", ld["dateModified"])

	require.Len(t, sink.delivered, 1)
	assert.Same(t, article, sink.delivered[0])
}

func TestRunRobotsDenied(t *testing.T) {
	gate := &fakeGate{allowed: false}
	sink := &fakeSink{}
	model := &fakeLLM{structured: defaultStructured()}

	state := newTestExecutor(gate, &fakeBrowser{pageHTML: articleHTML}, model, &fakeSearch{}, sink).
		Run(context.Background(), sourceURL, 3)

	require.True(t, state.Failed())
	assert.Equal(t, "Blocked by robots.txt: "+sourceURL, state.ErrorMessage)
	assert.Empty(t, sink.delivered)
}

func TestRunRetryThenSelectBest(t *testing.T) {
	gate := &fakeGate{allowed: true}
	br := &fakeBrowser{pageHTML: articleHTML}
	model := &fakeLLM{
		summaries: []string{"attempt one", "attempt two", "attempt three"},
		validations: []models.ValidationResult{
			reject(9.5, "tighten the lede"),
			reject(7.0, "still loose"),
			reject(6.0, "worse"),
		},
		structured: defaultStructured(),
	}
	sink := &fakeSink{}

	state := newTestExecutor(gate, br, model, &fakeSearch{}, sink).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	assert.Equal(t, 3, state.ValidationCount)
	assert.Equal(t, "attempt one", state.Article.Summary)
	require.NotNil(t, state.ValidationResult)
	require.NotNil(t, state.ValidationResult.SemanticScore)
	assert.InDelta(t, 9.5, *state.ValidationResult.SemanticScore, 1e-9)
}

func TestRunLinkFailuresScoreZero(t *testing.T) {
	gate := &fakeGate{allowed: true}
	br := &fakeBrowser{
		pageHTML: articleHTML,
		linkText: map[string]string{"https://other.example/context": "analysis"},
		linkErr:  map[string]error{"https://news.example/background": errors.New("navigation timeout")},
	}
	model := &fakeLLM{
		summaries:   []string{"summary"},
		validations: []models.ValidationResult{approve(8.0)},
		structured:  defaultStructured(),
	}

	state := newTestExecutor(gate, br, model, &fakeSearch{}, &fakeSink{}).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	scores := map[string]float64{}
	for _, link := range state.Article.EmbeddedLinks {
		require.NotNil(t, link.RelevanceScore)
		scores[link.URL] = *link.RelevanceScore
	}
	assert.InDelta(t, 0.0, scores["https://news.example/background"], 1e-9)
	assert.InDelta(t, 7.5, scores["https://other.example/context"], 1e-9)
}

func TestRunLinkScoringConsultsGate(t *testing.T) {
	gate := &fakeGate{allowed: true}
	br := &fakeBrowser{
		pageHTML: articleHTML,
		linkText: map[string]string{
			"https://news.example/background": "history",
			"https://other.example/context":   "analysis",
		},
	}
	model := &fakeLLM{
		summaries:   []string{"summary"},
		validations: []models.ValidationResult{approve(8.0)},
		structured:  defaultStructured(),
	}

	state := newTestExecutor(gate, br, model, &fakeSearch{}, &fakeSink{}).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	assert.Contains(t, gate.canURLs, sourceURL)
	assert.Contains(t, gate.canURLs, "https://news.example/background")
	assert.Contains(t, gate.canURLs, "https://other.example/context")
	assert.Equal(t, 3, gate.canCalls)
}

func TestRunLinkBlockedByRobotsScoresZero(t *testing.T) {
	gate := &fakeGate{
		allowed: true,
		deny:    map[string]bool{"https://news.example/background": true},
	}
	br := &fakeBrowser{
		pageHTML: articleHTML,
		linkText: map[string]string{
			"https://news.example/background": "history",
			"https://other.example/context":   "analysis",
		},
	}
	model := &fakeLLM{
		summaries:   []string{"summary"},
		validations: []models.ValidationResult{approve(8.0)},
		structured:  defaultStructured(),
	}

	state := newTestExecutor(gate, br, model, &fakeSearch{}, &fakeSink{}).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	scores := map[string]float64{}
	for _, link := range state.Article.EmbeddedLinks {
		require.NotNil(t, link.RelevanceScore)
		scores[link.URL] = *link.RelevanceScore
	}
	assert.InDelta(t, 0.0, scores["https://news.example/background"], 1e-9)
	assert.InDelta(t, 7.5, scores["https://other.example/context"], 1e-9)
	assert.NotContains(t, br.fetched, "https://news.example/background")
}

func TestRunSearchIsBestEffort(t *testing.T) {
	gate := &fakeGate{allowed: true}
	model := &fakeLLM{
		summaries:   []string{"summary"},
		validations: []models.ValidationResult{approve(8.0)},
		structured:  defaultStructured(),
	}
	srch := &fakeSearch{err: errors.New("search provider down")}
	sink := &fakeSink{}

	state := newTestExecutor(gate, &fakeBrowser{pageHTML: articleHTML}, model, srch, sink).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	assert.Empty(t, state.OtherSources)
	assert.Len(t, sink.delivered, 1)
}

func TestRunTranslationFailureDoesNotAbort(t *testing.T) {
	gate := &fakeGate{allowed: true}
	model := &fakeLLM{
		summaries:     []string{"summary"},
		validations:   []models.ValidationResult{approve(8.0)},
		structured:    defaultStructured(),
		structuredErr: map[string]error{llm.TranslationTool.Name: errors.New("model overloaded")},
	}

	state := newTestExecutor(gate, &fakeBrowser{pageHTML: articleHTML}, model, &fakeSearch{}, &fakeSink{}).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	assert.Empty(t, state.Article.TitleAr)
	assert.Equal(t, 0, state.Article.ReadingTimeAr)
	assert.Equal(t, 1, state.Article.ReadingTime)
}

func TestRunCategoryNormalization(t *testing.T) {
	gate := &fakeGate{allowed: true}
	structured := defaultStructured()
	structured[llm.CategoryTool.Name] = map[string]any{
		"categories": []string{"**market news**", "Unknown Section"},
	}
	model := &fakeLLM{
		summaries:   []string{"summary"},
		validations: []models.ValidationResult{approve(8.0)},
		structured:  structured,
	}

	state := newTestExecutor(gate, &fakeBrowser{pageHTML: articleHTML}, model, &fakeSearch{}, &fakeSink{}).
		Run(context.Background(), sourceURL, 3)

	require.False(t, state.Failed(), state.ErrorMessage)
	assert.Equal(t, []string{"**market news**"}, state.Article.Category)
	assert.Equal(t, []string{"id-1"}, state.Article.CategoryIDs)
}

func TestRunFetchErrorShortCircuits(t *testing.T) {
	gate := &fakeGate{allowed: true}
	br := &fakeBrowser{pageErr: errors.New("net::ERR_CONNECTION_RESET")}
	model := &fakeLLM{structured: defaultStructured()}
	sink := &fakeSink{}

	state := newTestExecutor(gate, br, model, &fakeSearch{}, sink).
		Run(context.Background(), sourceURL, 3)

	require.True(t, state.Failed())
	assert.Contains(t, state.ErrorMessage, "Fetch failed")
	assert.Empty(t, sink.delivered)
	assert.Empty(t, state.SummaryAttempts)
}

func TestVerifyReportsMissingDeps(t *testing.T) {
	e := New(Deps{})
	assert.Error(t, e.Verify())

	full := newTestExecutor(&fakeGate{}, &fakeBrowser{}, &fakeLLM{}, &fakeSearch{}, &fakeSink{})
	assert.NoError(t, full.Verify())
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 0, readingMinutes(""))
	assert.Equal(t, 1, readingMinutes(strings.Repeat("word ", 200)))
	assert.Equal(t, 2, readingMinutes(strings.Repeat("word ", 201)))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "market news", normalizeCategory("**Market News**"))
	assert.Equal(t, "tech", normalizeCategory("  Tech!  "))
}
