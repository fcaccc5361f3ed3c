package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

func TestDeliverSuccess(t *testing.T) {
	var gotSecret, gotUA string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Webhook-Secret")
		gotUA = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewSink(srv.URL, "s3cret", logger.NewNopLogger())
	err := sink.Deliver(context.Background(), "https://news.example/a", &models.NewsArticle{Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", gotSecret)
	assert.Equal(t, "NewsAgent/1.0", gotUA)
	assert.Equal(t, "https://news.example/a", gotBody["source_url"])
	assert.Equal(t, "success", gotBody["status"])
	data, ok := gotBody["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "T", data["title"])
}

func TestDeliverRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad secret", http.StatusForbidden)
	}))
	defer srv.Close()

	sink := NewSink(srv.URL, "wrong", logger.NewNopLogger())
	err := sink.Deliver(context.Background(), "https://news.example/a", &models.NewsArticle{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDeliverNoReceiver(t *testing.T) {
	sink := NewSink("", "", logger.NewNopLogger())
	assert.NoError(t, sink.Deliver(context.Background(), "https://news.example/a", &models.NewsArticle{}))
}
