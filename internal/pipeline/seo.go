package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/newsagent/internal/llm"
	"github.com/jonesrussell/newsagent/internal/models"
)

// Publisher identity baked into every JSON-LD record.
const (
	publisherName    = "NewsAgent"
	publisherLogoURL = "https://newsagent.example/logo.png"
)

// generateSEO asks the model for the textual SEO fields, then constructs the
// JSON-LD NewsArticle record deterministically. The model never produces the
// JSON-LD itself.
func (e *Executor) generateSEO(ctx context.Context, state *models.WorkflowState) {
	prompts := state.ActivePrompts

	var out struct {
		MetaTitle              string   `json:"meta_title"`
		MetaDescription        string   `json:"meta_description"`
		Slug                   string   `json:"slug"`
		PrimaryKeywords        []string `json:"primary_keywords"`
		OGTitle                string   `json:"og_title"`
		OGDescription          string   `json:"og_description"`
		TwitterCardTitle       string   `json:"twitter_card_title"`
		TwitterCardDescription string   `json:"twitter_card_description"`
	}
	err := e.deps.LLM.Structured(ctx, prompts.SEOSystem,
		render(prompts.SEOUser, map[string]string{
			"title":   state.Article.Title,
			"summary": state.Article.Summary,
		}),
		llm.SEOTool, &out)
	if err != nil {
		state.ErrorMessage = fmt.Sprintf("SEO generation failed: %v", err)
		return
	}

	seo := &models.SEOMetadata{
		MetaTitle:              out.MetaTitle,
		MetaDescription:        out.MetaDescription,
		Slug:                   out.Slug,
		PrimaryKeywords:        out.PrimaryKeywords,
		OGTitle:                out.OGTitle,
		OGDescription:          out.OGDescription,
		TwitterCardTitle:       out.TwitterCardTitle,
		TwitterCardDescription: out.TwitterCardDescription,
	}
	seo.JSONLDSchema = buildJSONLD(state.Article, seo, state.SourceURL, e.now().UTC())
	state.Article.SEO = seo
}

// buildJSONLD assembles the schema.org NewsArticle record from fields the
// pipeline already holds.
func buildJSONLD(article *models.NewsArticle, seo *models.SEOMetadata, sourceURL string, now time.Time) map[string]any {
	published := article.PublishedDate
	if published == "" {
		published = now.Format(time.RFC3339)
	}

	record := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "NewsArticle",
		"headline":      article.Title,
		"description":   seo.MetaDescription,
		"datePublished": published,
		"dateModified":  now.Format(time.RFC3339),
		"mainEntityOfPage": map[string]any{
			"@type": "WebPage",
			"@id":   sourceURL,
		},
		"publisher": map[string]any{
			"@type": "Organization",
			"name":  publisherName,
			"logo": map[string]any{
				"@type": "ImageObject",
				"url":   publisherLogoURL,
			},
		},
	}
	if article.TopImage != "" {
		record["image"] = []string{article.TopImage}
	}
	if article.Author != "" {
		record["author"] = map[string]any{
			"@type": "Person",
			"name":  article.Author,
		}
	} else {
		record["author"] = map[string]any{
			"@type": "Organization",
			"name":  publisherName,
		}
	}
	return record
}
