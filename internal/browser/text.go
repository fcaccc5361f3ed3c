package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VisibleText strips markup and returns the page's visible text, truncated
// to limit runes. Script and style bodies are removed first.
func VisibleText(html string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if limit > 0 {
		runes := []rune(text)
		if len(runes) > limit {
			return string(runes[:limit])
		}
	}
	return text
}
