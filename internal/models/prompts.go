package models

import (
	"fmt"
	"time"
)

// Prompt status values. Exactly one active version per name is consumed by
// the pipeline.
const (
	PromptStatusActive   = "active"
	PromptStatusDraft    = "draft"
	PromptStatusArchived = "archived"
)

// Prompt is a named, versioned text template stored by the admin surface.
type Prompt struct {
	ID             string    `db:"id"              json:"id"`
	Name           string    `db:"name"            json:"name"`
	Content        string    `db:"content"         json:"content"`
	Status         string    `db:"status"          json:"status"`
	Version        string    `db:"version"         json:"version"`
	InputVariables []string  `db:"input_variables" json:"input_variables,omitempty"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// PromptBundle is the exact set of prompts the pipeline requires. Loading
// fails fast when any is missing so a misconfigured deployment dies at
// stage one, not mid-run.
type PromptBundle struct {
	ContentExtractor string

	SummarySystem      string
	SummaryInitialUser string
	SummaryRetryUser   string

	ValidationSystem string
	ValidationUser   string

	RelevanceSystem string
	RelevanceUser   string

	SearchSystem string
	SearchUser   string

	CategorizationSystem string
	CategorizationUser   string

	SEOSystem string
	SEOUser   string

	TranslationSystem string
	TranslationUser   string

	CountryExtractionSystem string
	CountryExtractionUser   string
}

// RequiredPromptNames lists the logical names the pipeline loads at startup,
// in the order they are consumed.
var RequiredPromptNames = []string{
	"content_extractor",
	"summary_system",
	"summary_initial_user",
	"summary_retry_user",
	"validation_system",
	"validation_user",
	"relevance_system",
	"relevance_user",
	"search_system",
	"search_user",
	"categorization_system",
	"categorization_user",
	"seo_system",
	"seo_user",
	"translation_system",
	"translation_user",
	"country_extraction_system",
	"country_extraction_user",
}

// BundleFromMap builds a PromptBundle from name -> content, returning an
// error naming every missing prompt.
func BundleFromMap(prompts map[string]string) (*PromptBundle, error) {
	var missing []string
	get := func(name string) string {
		content, ok := prompts[name]
		if !ok || content == "" {
			missing = append(missing, name)
		}
		return content
	}

	bundle := &PromptBundle{
		ContentExtractor:        get("content_extractor"),
		SummarySystem:           get("summary_system"),
		SummaryInitialUser:      get("summary_initial_user"),
		SummaryRetryUser:        get("summary_retry_user"),
		ValidationSystem:        get("validation_system"),
		ValidationUser:          get("validation_user"),
		RelevanceSystem:         get("relevance_system"),
		RelevanceUser:           get("relevance_user"),
		SearchSystem:            get("search_system"),
		SearchUser:              get("search_user"),
		CategorizationSystem:    get("categorization_system"),
		CategorizationUser:      get("categorization_user"),
		SEOSystem:               get("seo_system"),
		SEOUser:                 get("seo_user"),
		TranslationSystem:       get("translation_system"),
		TranslationUser:         get("translation_user"),
		CountryExtractionSystem: get("country_extraction_system"),
		CountryExtractionUser:   get("country_extraction_user"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required prompts: %v", missing)
	}
	return bundle, nil
}

// EmailRecipient is an address on the error-notification list.
type EmailRecipient struct {
	ID       string `db:"id"        json:"id"`
	Email    string `db:"email"     json:"email"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Category maps a human-readable category name to the external system's id.
type Category struct {
	ID         string `db:"id"          json:"id"`
	Name       string `db:"name"        json:"name"`
	ExternalID string `db:"external_id" json:"external_id"`
}
