// Package extract pulls the article body and its metadata out of rendered
// HTML. Three strategies run in order until one yields enough text: a
// readability pass over the full document, JSON-LD articleBody, and a fixed
// list of known content selectors.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// MinBodyChars is the acceptance threshold for an extracted body.
const MinBodyChars = 200

// ErrNoContent is returned when every strategy comes up short.
var ErrNoContent = errors.New("no article body found")

// contentSelectors is tried in order by the selector strategy.
var contentSelectors = []string{
	"div.story-element-text",
	".story-element",
	".Iqx1L",
	"article",
	".story-content",
	".article-body",
	"#article-body",
	".post-content",
	"main",
}

// Result is the extracted article.
type Result struct {
	Title         string
	Text          string
	HTML          string
	Author        string
	PublishedDate string
	TopImage      string
}

// FromHTML extracts the article from a rendered page. pageURL resolves
// relative links inside the extracted body; pageTitle is the browser tab
// title, used as the last title fallback.
func FromHTML(html, pageURL, pageTitle string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, iframe, form, nav, header, footer, aside").Remove()

	res := &Result{}
	res.Title = extractTitle(doc, pageTitle)
	res.Author = extractAuthor(doc)
	res.PublishedDate = extractPublishedDate(doc)
	res.TopImage = metaContent(doc, `meta[property="og:image"]`)

	if text, outer := readabilityBody(html, pageURL); len(text) >= MinBodyChars {
		res.Text = text
		res.HTML = outer
		return res, nil
	}

	if body, ld := jsonLDArticle(doc); len(body) >= MinBodyChars {
		res.Text = body
		res.HTML = ""
		fillFromJSONLD(res, ld)
		return res, nil
	}

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := normalizeText(node.Text()); len(text) >= MinBodyChars {
			res.Text = text
			res.HTML, _ = goquery.OuterHtml(node)
			return res, nil
		}
	}

	return nil, ErrNoContent
}

// readabilityBody runs the generic readability extractor over the full
// document. Returns empty strings when the extractor fails or yields
// nothing usable.
func readabilityBody(html, pageURL string) (text, outer string) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", ""
	}
	return normalizeText(article.TextContent), strings.TrimSpace(article.Content)
}

// jsonLDArticle scans ld+json scripts for an articleBody, accepting both a
// single object and a list at the root. The matched document is returned for
// metadata backfill.
func jsonLDArticle(doc *goquery.Document) (string, map[string]any) {
	var body string
	var matched map[string]any

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var candidates []map[string]any
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			candidates = append(candidates, obj)
		} else {
			var list []map[string]any
			if err := json.Unmarshal([]byte(raw), &list); err != nil {
				return true
			}
			candidates = list
		}

		for _, c := range candidates {
			if ab, ok := c["articleBody"].(string); ok && ab != "" {
				body = normalizeText(ab)
				matched = c
				return false
			}
		}
		return true
	})

	return body, matched
}

func fillFromJSONLD(res *Result, ld map[string]any) {
	if ld == nil {
		return
	}
	if res.Title == "" {
		if h, ok := ld["headline"].(string); ok {
			res.Title = h
		}
	}
	if res.PublishedDate == "" {
		if d, ok := ld["datePublished"].(string); ok {
			res.PublishedDate = d
		}
	}
	if res.Author == "" {
		res.Author = strings.Join(ldAuthors(ld["author"]), ", ")
	}
	if res.TopImage == "" {
		switch img := ld["image"].(type) {
		case string:
			res.TopImage = img
		case map[string]any:
			if u, ok := img["url"].(string); ok {
				res.TopImage = u
			}
		case []any:
			if len(img) > 0 {
				if u, ok := img[0].(string); ok {
					res.TopImage = u
				}
			}
		}
	}
}

func ldAuthors(v any) []string {
	var names []string
	add := func(item any) {
		switch a := item.(type) {
		case string:
			names = append(names, a)
		case map[string]any:
			if n, ok := a["name"].(string); ok {
				names = append(names, n)
			}
		}
	}
	switch a := v.(type) {
	case []any:
		for _, item := range a {
			add(item)
		}
	default:
		add(a)
	}
	return names
}

func extractTitle(doc *goquery.Document, pageTitle string) string {
	if t := metaContent(doc, `meta[property="og:title"]`); t != "" {
		return t
	}
	if t := normalizeText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(pageTitle)
}

func extractAuthor(doc *goquery.Document) string {
	if a := metaContent(doc, `meta[name="author"]`); a != "" {
		return a
	}
	var names []string
	doc.Find(`[rel="author"], .author-name, .byline__name`).Each(func(_ int, s *goquery.Selection) {
		if n := normalizeText(s.Text()); n != "" {
			names = append(names, n)
		}
	})
	return strings.Join(names, ", ")
}

func extractPublishedDate(doc *goquery.Document) string {
	if d := metaContent(doc, `meta[property="article:published_time"]`); d != "" {
		return d
	}
	if d, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(d)
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
