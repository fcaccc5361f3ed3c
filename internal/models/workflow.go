package models

// NewsArticle is the enriched article built up by the pipeline and delivered
// to the downstream webhook.
type NewsArticle struct {
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Summary       string         `json:"summary"`
	PublishedDate string         `json:"published_date,omitempty"`
	Author        string         `json:"author,omitempty"`
	TopImage      string         `json:"top_image,omitempty"`
	Category      []string       `json:"category,omitempty"`
	CategoryIDs   []string       `json:"category_ids,omitempty"`
	SubCategory   []string       `json:"sub_category,omitempty"`
	Countries     []string       `json:"countries,omitempty"`
	TitleAr       string         `json:"title_ar,omitempty"`
	SummaryAr     string         `json:"summary_ar,omitempty"`
	ContentAr     string         `json:"content_ar,omitempty"`
	ReadingTime   int            `json:"reading_time,omitempty"`
	ReadingTimeAr int            `json:"reading_time_ar,omitempty"`
	EmbeddedLinks []EmbeddedLink `json:"embedded_links,omitempty"`
	SEO           *SEOMetadata   `json:"seo,omitempty"`
}

// EmbeddedLink is an anchor found inside the extracted article body. The
// relevance score is populated later by the link-scoring fan-out; nil means
// not yet scored.
type EmbeddedLink struct {
	HyperlinkText  string   `json:"hyperlink_text"`
	URL            string   `json:"url"`
	Context        string   `json:"context,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// ValidationResult holds the critic's verdict on a generated summary.
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Feedback      string   `json:"feedback"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	ToneScore     *float64 `json:"tone_score,omitempty"`
}

// SummaryAttempt pairs one generated summary with its validation.
type SummaryAttempt struct {
	Summary    string           `json:"summary"`
	Validation ValidationResult `json:"validation"`
}

// SearchQueryData is the structured output of the query-generation step.
type SearchQueryData struct {
	Keywords []string `json:"keywords"`
	Queries  []string `json:"queries"`
}

// SearchResult is one corroborating source returned by the search tool.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// SEOMetadata combines LLM-generated fields with the deterministically
// constructed JSON-LD schema. The LLM never produces the JSON-LD.
type SEOMetadata struct {
	MetaTitle               string         `json:"meta_title"`
	MetaDescription         string         `json:"meta_description"`
	Slug                    string         `json:"slug"`
	PrimaryKeywords         []string       `json:"primary_keywords"`
	OGTitle                 string         `json:"og_title"`
	OGDescription           string         `json:"og_description"`
	TwitterCardTitle        string         `json:"twitter_card_title"`
	TwitterCardDescription  string         `json:"twitter_card_description"`
	JSONLDSchema            map[string]any `json:"json_ld_schema,omitempty"`
}

// WorkflowState is the value threaded through the pipeline executor. Stages
// derive a new state from their input; ErrorMessage set means every
// downstream stage is a no-op.
type WorkflowState struct {
	SourceURL          string
	CleanedArticleText string
	CleanedArticleHTML string
	Article            *NewsArticle

	ActivePrompts   *PromptBundle
	CategoryMapping map[string]string

	ValidationCount  int
	ValidationResult *ValidationResult
	SummaryAttempts  []SummaryAttempt

	OtherSources    []SearchResult
	SearchQueryData *SearchQueryData

	MaxRetries   int
	ErrorMessage string
}

// Failed reports whether a stage has recorded a fatal error.
func (s *WorkflowState) Failed() bool {
	return s.ErrorMessage != ""
}
