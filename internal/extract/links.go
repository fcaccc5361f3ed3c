package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/urlfilter"
)

// Links parses the article HTML and returns its outbound anchors. Internal
// jumps, javascript/mailto schemes, share controls, and blocklisted domains
// are dropped. Context is the anchor's parent element text.
func Links(articleHTML, sourceURL string) ([]models.EmbeddedLink, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	if err != nil {
		return nil, fmt.Errorf("parse article html: %w", err)
	}

	var links []models.EmbeddedLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := normalizeText(a.Text())
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if text == "" || href == "" {
			return
		}
		if strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return
		}
		if urlfilter.IsShareText(text) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if urlfilter.IsBlockedDomain(abs.Host) {
			return
		}

		links = append(links, models.EmbeddedLink{
			HyperlinkText: text,
			URL:           abs.String(),
			Context:       normalizeText(a.Parent().Text()),
		})
	})

	return links, nil
}

// ListingURLs extracts candidate article URLs from a listing page: absolute
// same-host links, optionally filtered by a substring pattern, with ad URLs,
// blocked domains, and share controls rejected. Order is preserved and
// duplicates removed.
func ListingURLs(listingHTML, listingURL, urlPattern string) ([]string, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return
		}
		if urlfilter.IsShareText(normalizeText(a.Text())) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Host != base.Host {
			return
		}

		abs.Fragment = ""
		full := abs.String()
		if urlPattern != "" && !strings.Contains(full, urlPattern) {
			return
		}
		if urlfilter.IsAdURL(full) || urlfilter.IsBlockedDomain(abs.Host) {
			return
		}
		if full == listingURL || seen[full] {
			return
		}
		seen[full] = true
		urls = append(urls, full)
	})

	return urls, nil
}
