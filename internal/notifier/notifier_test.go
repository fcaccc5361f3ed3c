package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/logger"
)

type staticRecipients struct {
	emails []string
	err    error
}

func (s staticRecipients) ActiveEmails(context.Context) ([]string, error) {
	return s.emails, s.err
}

func TestComposeEscapesAndIncludesFields(t *testing.T) {
	n := NewSMTPNotifier("smtp.example", 587, "bot@news.example", "pw",
		staticRecipients{}, logger.NewNopLogger())

	msg := n.compose(Alert{
		JobID:        "job-1",
		SourceURL:    "https://news.example/a?x=1&y=2",
		ErrorMessage: "fetch failed: <timeout>",
		Traceback:    "goroutine 1 [running]",
		OccurredAt:   time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}, []string{"ops@news.example"})

	body := string(msg)
	assert.Contains(t, body, "Subject: [NewsAgent] Job job-1 failed")
	assert.Contains(t, body, "To: ops@news.example")
	assert.Contains(t, body, "&lt;timeout&gt;")
	assert.Contains(t, body, "x=1&amp;y=2")
	assert.Contains(t, body, "goroutine 1 [running]")
	assert.Contains(t, body, "2026-08-20T12:00:00Z")
	assert.Contains(t, body, "Content-Type: text/html")
}

func TestNotifyFailureNoHost(t *testing.T) {
	n := NewSMTPNotifier("", 0, "", "", staticRecipients{emails: []string{"a@b"}}, logger.NewNopLogger())
	assert.NoError(t, n.NotifyFailure(context.Background(), Alert{JobID: "j"}))
}

func TestNotifyFailureNoRecipients(t *testing.T) {
	n := NewSMTPNotifier("smtp.example", 587, "bot@news.example", "pw",
		staticRecipients{}, logger.NewNopLogger())
	assert.NoError(t, n.NotifyFailure(context.Background(), Alert{JobID: "j"}))
}

func TestNotifyFailureRecipientLoadError(t *testing.T) {
	n := NewSMTPNotifier("smtp.example", 587, "bot@news.example", "pw",
		staticRecipients{err: errors.New("db down")}, logger.NewNopLogger())

	err := n.NotifyFailure(context.Background(), Alert{JobID: "j"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load recipients")
}
