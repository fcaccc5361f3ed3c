// Package urlfilter holds the shared noise filters applied to discovered
// and embedded links: ad URL patterns, blocked domains, and social "share"
// link texts.
package urlfilter

import (
	"net/url"
	"regexp"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/ads/`),
	regexp.MustCompile(`(?i)/ad/`),
	regexp.MustCompile(`(?i)doubleclick`),
	regexp.MustCompile(`(?i)googlead`),
	regexp.MustCompile(`(?i)outbrain`),
	regexp.MustCompile(`(?i)taboola`),
	regexp.MustCompile(`(?i)click\?`),
	regexp.MustCompile(`(?i)campaign`),
	regexp.MustCompile(`(?i)sponsored`),
	regexp.MustCompile(`(?i)promotion`),
}

var blockedDomains = []string{
	"doubleclick.net",
	"googleadservices.com",
	"googlesyndication.com",
	"facebook.com",
	"twitter.com",
	"linkedin.com",
	"instagram.com",
	"outbrain.com",
	"taboola.com",
}

var shareTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^share$`),
	regexp.MustCompile(`(?i)^tweet$`),
	regexp.MustCompile(`(?i)^post$`),
	regexp.MustCompile(`(?i)^share on.*`),
}

// IsAdURL reports whether the URL matches a known ad or tracking pattern.
func IsAdURL(rawURL string) bool {
	for _, p := range adPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// IsBlockedDomain reports whether the host belongs to a blocklisted domain.
func IsBlockedDomain(host string) bool {
	host = strings.ToLower(host)
	for _, d := range blockedDomains {
		if host == d || strings.HasSuffix(host, "."+d) || strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// IsShareText reports whether anchor text is a social sharing control.
func IsShareText(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range shareTextPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsBlockedURL combines the domain check with URL parsing; unparseable URLs
// are blocked.
func IsBlockedURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return IsBlockedDomain(parsed.Host)
}
