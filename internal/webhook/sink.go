// Package webhook delivers the terminal pipeline result to the configured
// receiver. Delivery is best-effort: failures are logged, never propagated.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/metrics"
	"github.com/jonesrussell/newsagent/internal/models"
)

const (
	deliveryTimeout = 15 * time.Second
	userAgent       = "NewsAgent/1.0"
)

// Sink posts completed articles to the downstream receiver.
type Sink struct {
	url    string
	secret string
	http   *http.Client
	log    logger.Logger
}

// NewSink builds a Sink. An empty url disables delivery.
func NewSink(url, secret string, log logger.Logger) *Sink {
	return &Sink{
		url:    url,
		secret: secret,
		http:   &http.Client{Timeout: deliveryTimeout},
		log:    log,
	}
}

type payload struct {
	SourceURL string              `json:"source_url"`
	Status    string              `json:"status"`
	Data      *models.NewsArticle `json:"data"`
}

// Deliver posts the article. It returns an error for observability only;
// callers treat delivery as fire-and-forget.
func (s *Sink) Deliver(ctx context.Context, sourceURL string, article *models.NewsArticle) error {
	if s.url == "" {
		s.log.Debug("Webhook delivery skipped, no receiver configured")
		return nil
	}

	body, err := json.Marshal(payload{
		SourceURL: sourceURL,
		Status:    "success",
		Data:      article,
	})
	if err != nil {
		s.log.Error("Failed to encode webhook payload", logger.Error(err))
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Secret", s.secret)

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("Webhook delivery failed",
			logger.String("source_url", sourceURL),
			logger.Error(err))
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		s.log.Info("Webhook delivered",
			logger.String("source_url", sourceURL),
			logger.Int("status", resp.StatusCode))
		metrics.WebhookDeliveries.WithLabelValues("accepted").Inc()
		return nil
	default:
		s.log.Warn("Webhook receiver rejected delivery",
			logger.String("source_url", sourceURL),
			logger.Int("status", resp.StatusCode))
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		return fmt.Errorf("webhook receiver returned %d", resp.StatusCode)
	}
}
