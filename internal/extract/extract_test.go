package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longBody = strings.Repeat("The committee voted on the measure after a long debate. ", 10)

func TestFromHTMLReadability(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Vote Passes">
		<meta property="og:image" content="https://news.example/img.jpg">
		<meta name="author" content="A. Reporter">
		<meta property="article:published_time" content="2026-08-20T10:00:00Z">
	</head><body>
		<div class="sidebar"><p>short</p></div>
		<div class="content">
			<p>` + longBody + `</p>
			<p>` + longBody + `</p>
			<p>` + longBody + `</p>
		</div>
	</body></html>`

	res, err := FromHTML(html, "https://news.example/vote", "Tab Title")
	require.NoError(t, err)
	assert.Equal(t, "Vote Passes", res.Title)
	assert.Equal(t, "A. Reporter", res.Author)
	assert.Equal(t, "2026-08-20T10:00:00Z", res.PublishedDate)
	assert.Equal(t, "https://news.example/img.jpg", res.TopImage)
	assert.Contains(t, res.Text, "committee voted")
	assert.NotContains(t, res.Text, "short")
}

func TestFromHTMLJSONLDObject(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
		{"@type":"NewsArticle","headline":"LD Headline","articleBody":` + jsonString(longBody) + `,
		 "datePublished":"2026-08-19","author":{"name":"LD Author"},
		 "image":{"url":"https://news.example/ld.jpg"}}
	</script></head><body><p>nothing here</p></body></html>`

	res, err := FromHTML(html, "https://news.example/ld", "")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "committee voted")
	assert.Equal(t, "LD Headline", res.Title)
	assert.Equal(t, "LD Author", res.Author)
	assert.Equal(t, "2026-08-19", res.PublishedDate)
	assert.Equal(t, "https://news.example/ld.jpg", res.TopImage)
}

func TestFromHTMLJSONLDList(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
		[{"@type":"WebPage"},{"@type":"NewsArticle","articleBody":` + jsonString(longBody) + `}]
	</script></head><body></body></html>`

	res, err := FromHTML(html, "https://news.example/ld-list", "Fallback Title")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "committee voted")
	assert.Equal(t, "Fallback Title", res.Title)
}

func TestFromHTMLSelectorFallback(t *testing.T) {
	html := `<html><body><section id="article-body">` + longBody + `</section></body></html>`

	res, err := FromHTML(html, "https://news.example/selector", "T")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "committee voted")
}

func TestFromHTMLNoContent(t *testing.T) {
	_, err := FromHTML(`<html><body><p>too short</p></body></html>`, "https://news.example/empty", "T")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFromHTMLTitleFallsBackToH1(t *testing.T) {
	html := `<html><body><h1> Headline From H1 </h1><main>` + longBody + `</main></body></html>`

	res, err := FromHTML(html, "https://news.example/h1", "Tab")
	require.NoError(t, err)
	assert.Equal(t, "Headline From H1", res.Title)
}

func jsonString(s string) string {
	return `"` + s + `"`
}
