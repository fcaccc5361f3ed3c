package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const submitTimeout = 10 * time.Second

// APISubmitter posts discovered URLs to the Job API's submit endpoint.
type APISubmitter struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewAPISubmitter builds a submitter for the Job API at baseURL.
func NewAPISubmitter(baseURL, apiKey string) *APISubmitter {
	return &APISubmitter{
		endpoint: strings.TrimRight(baseURL, "/") + "/submit-job",
		apiKey:   apiKey,
		http:     &http.Client{Timeout: submitTimeout},
	}
}

// Submit implements Submitter.
func (s *APISubmitter) Submit(ctx context.Context, sourceURL string) error {
	body, err := json.Marshal(map[string]string{"source_url": sourceURL})
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("submit %s: status %d", sourceURL, resp.StatusCode)
	}
	return nil
}
