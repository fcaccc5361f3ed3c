package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks(t *testing.T) {
	html := `<div>
		<p>See the <a href="/background">earlier report</a> for context.</p>
		<p><a href="https://other.example/analysis">Outside analysis</a></p>
		<p><a href="#section-2">Jump</a></p>
		<p><a href="javascript:void(0)">Open menu</a></p>
		<p><a href="mailto:tips@news.example">Tip line</a></p>
		<p><a href="https://twitter.com/intent/tweet">Share on Twitter</a></p>
		<p><a href="https://news.example/empty"></a></p>
	</div>`

	links, err := Links(html, "https://news.example/story-1")
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "earlier report", links[0].HyperlinkText)
	assert.Equal(t, "https://news.example/background", links[0].URL)
	assert.Contains(t, links[0].Context, "for context")
	assert.Equal(t, "https://other.example/analysis", links[1].URL)
}

func TestListingURLs(t *testing.T) {
	html := `<body>
		<a href="/news/story-1">Story one</a>
		<a href="/news/story-2#comments">Story two</a>
		<a href="/news/story-1">Story one again</a>
		<a href="/about">About us</a>
		<a href="https://cdn.example/news/external">External</a>
		<a href="/ads/banner-click">Offer</a>
		<a href="/news/share-target">Share</a>
	</body>`

	urls, err := ListingURLs(html, "https://news.example/news", "/news/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://news.example/news/story-1",
		"https://news.example/news/story-2",
	}, urls)
}

func TestListingURLsNoPattern(t *testing.T) {
	html := `<a href="/a">A</a><a href="/b">B</a>`

	urls, err := ListingURLs(html, "https://news.example/", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://news.example/a", "https://news.example/b"}, urls)
}
