package llm

// Tool schemas for every structured pipeline output. The pipeline decodes
// each payload into its models counterpart.

// ValidationTool records the fact-check verdict for a generated summary.
var ValidationTool = Tool{
	Name:        "record_validation",
	Description: "Record the validation verdict for an article summary.",
	Properties: map[string]any{
		"is_valid":       map[string]any{"type": "boolean"},
		"semantic_score": map[string]any{"type": "number"},
		"tone_score":     map[string]any{"type": "number"},
		"feedback":       map[string]any{"type": "string"},
	},
	Required: []string{"is_valid", "feedback"},
}

// RelevanceTool scores an embedded link against the source article.
var RelevanceTool = Tool{
	Name:        "record_link_relevance",
	Description: "Score how relevant a linked page is to the source article.",
	Properties: map[string]any{
		"score":  map[string]any{"type": "number", "minimum": 0, "maximum": 10},
		"reason": map[string]any{"type": "string"},
	},
	Required: []string{"score"},
}

// SearchQueryTool produces the web search queries for corroborating sources.
var SearchQueryTool = Tool{
	Name:        "record_search_queries",
	Description: "Record search queries for finding independent coverage of the story.",
	Properties: map[string]any{
		"keywords": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"queries": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	Required: []string{"queries"},
}

// CategoryTool assigns editorial categories to the article.
var CategoryTool = Tool{
	Name:        "record_categories",
	Description: "Assign up to three editorial categories to the article.",
	Properties: map[string]any{
		"categories": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": 3,
		},
	},
	Required: []string{"categories"},
}

// TranslationTool returns the Arabic rendition of the article fields.
var TranslationTool = Tool{
	Name:        "record_translation",
	Description: "Record the Arabic translation of the article title, summary, and content.",
	Properties: map[string]any{
		"title_ar":   map[string]any{"type": "string"},
		"summary_ar": map[string]any{"type": "string"},
		"content_ar": map[string]any{"type": "string"},
	},
	Required: []string{"title_ar", "summary_ar", "content_ar"},
}

// CountryTool extracts the countries the story concerns.
var CountryTool = Tool{
	Name:        "record_countries",
	Description: "Record the ISO country names the story is about.",
	Properties: map[string]any{
		"countries": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	Required: []string{"countries"},
}

// SEOTool produces the SEO metadata fields the model is responsible for.
var SEOTool = Tool{
	Name:        "record_seo",
	Description: "Record SEO title, description, keywords, and slug for the article.",
	Properties: map[string]any{
		"meta_title":       map[string]any{"type": "string", "maxLength": 60},
		"meta_description": map[string]any{"type": "string", "maxLength": 160},
		"slug":             map[string]any{"type": "string"},
		"primary_keywords": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": 3,
			"maxItems": 5,
		},
		"og_title":                 map[string]any{"type": "string"},
		"og_description":           map[string]any{"type": "string"},
		"twitter_card_title":       map[string]any{"type": "string"},
		"twitter_card_description": map[string]any{"type": "string"},
	},
	Required: []string{"meta_title", "meta_description", "slug", "primary_keywords"},
}
