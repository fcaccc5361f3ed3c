package urlfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://news.example/ads/banner", true},
		{"https://news.example/story?utm_campaign=x", true},
		{"https://doubleclick.net/track", true},
		{"https://news.example/politics/story-1", false},
		{"https://news.example/sponsored-content", true},
		{"https://news.example/addresses", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAdURL(tt.url))
		})
	}
}

func TestIsBlockedDomain(t *testing.T) {
	assert.True(t, IsBlockedDomain("facebook.com"))
	assert.True(t, IsBlockedDomain("www.facebook.com"))
	assert.True(t, IsBlockedDomain("ads.taboola.com"))
	assert.False(t, IsBlockedDomain("news.example"))
}

func TestIsShareText(t *testing.T) {
	assert.True(t, IsShareText("Share"))
	assert.True(t, IsShareText("share on facebook"))
	assert.True(t, IsShareText("TWEET"))
	assert.True(t, IsShareText(" Post "))
	assert.False(t, IsShareText("Prime Minister shares plan"))
	assert.False(t, IsShareText("Postal workers strike"))
}

func TestIsBlockedURL(t *testing.T) {
	assert.True(t, IsBlockedURL("https://twitter.com/intent/tweet"))
	assert.False(t, IsBlockedURL("https://news.example/story"))
	assert.True(t, IsBlockedURL("://bad url"))
}
