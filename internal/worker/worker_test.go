package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/notifier"
	"github.com/jonesrussell/newsagent/internal/queue"
)

type fakeRunner struct {
	mu     sync.Mutex
	states map[string]*models.WorkflowState
	panics map[string]bool
	ran    []string
}

func (r *fakeRunner) Run(_ context.Context, sourceURL string, _ int) *models.WorkflowState {
	r.mu.Lock()
	r.ran = append(r.ran, sourceURL)
	r.mu.Unlock()
	if r.panics[sourceURL] {
		panic("selector exploded")
	}
	if state, ok := r.states[sourceURL]; ok {
		return state
	}
	return &models.WorkflowState{SourceURL: sourceURL, Article: &models.NewsArticle{}}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notifier.Alert
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, alert notifier.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func newTestWorker(t *testing.T, runner *fakeRunner) (*Worker, *queue.Queue, *recordingNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.New(client, "jobs", "jobs:dead", 24*time.Hour, logger.NewNopLogger())
	n := &recordingNotifier{}
	return New(q, runner, n, logger.NewNopLogger()), q, n, mr
}

func enqueue(t *testing.T, q *queue.Queue, id, url string) {
	t.Helper()
	_, err := q.Enqueue(context.Background(), &models.JobEnvelope{
		JobID:      id,
		SourceURL:  url,
		MaxRetries: 3,
		EnqueuedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestProcessCompletedJob(t *testing.T) {
	runner := &fakeRunner{}
	w, q, n, _ := newTestWorker(t, runner)

	enqueue(t, q, "j-1", "https://news.example/a")
	env, err := q.DequeueBlocking(context.Background(), time.Second)
	require.NoError(t, err)

	w.process(context.Background(), env)

	status, err := q.GetStatus(context.Background(), "j-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status.Status)
	assert.NotEmpty(t, status.Result)
	assert.Empty(t, n.alerts)
}

func TestProcessFailedJobDeadLettersAndNotifies(t *testing.T) {
	runner := &fakeRunner{states: map[string]*models.WorkflowState{
		"https://news.example/bad": {
			SourceURL:    "https://news.example/bad",
			Article:      &models.NewsArticle{},
			ErrorMessage: "Summary generation failed: model overloaded",
		},
	}}
	w, q, n, mr := newTestWorker(t, runner)

	enqueue(t, q, "j-2", "https://news.example/bad")
	env, err := q.DequeueBlocking(context.Background(), time.Second)
	require.NoError(t, err)

	w.process(context.Background(), env)

	status, err := q.GetStatus(context.Background(), "j-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status.Status)
	assert.Equal(t, "Summary generation failed: model overloaded", status.Error)

	items, err := mr.List("jobs:dead")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Len(t, n.alerts, 1)
	assert.Equal(t, "j-2", n.alerts[0].JobID)
}

func TestProcessRobotsDenialSkipsNotifier(t *testing.T) {
	runner := &fakeRunner{states: map[string]*models.WorkflowState{
		"https://blocked.example/a": {
			SourceURL:    "https://blocked.example/a",
			Article:      &models.NewsArticle{},
			ErrorMessage: "Blocked by robots.txt: https://blocked.example/a",
		},
	}}
	w, q, n, mr := newTestWorker(t, runner)

	enqueue(t, q, "j-3", "https://blocked.example/a")
	env, err := q.DequeueBlocking(context.Background(), time.Second)
	require.NoError(t, err)

	w.process(context.Background(), env)

	status, err := q.GetStatus(context.Background(), "j-3")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status.Status)

	items, err := mr.List("jobs:dead")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Empty(t, n.alerts)
}

func TestProcessPanicBecomesCrashed(t *testing.T) {
	runner := &fakeRunner{panics: map[string]bool{"https://news.example/boom": true}}
	w, q, n, mr := newTestWorker(t, runner)

	enqueue(t, q, "j-4", "https://news.example/boom")
	env, err := q.DequeueBlocking(context.Background(), time.Second)
	require.NoError(t, err)

	require.NotPanics(t, func() { w.process(context.Background(), env) })

	status, err := q.GetStatus(context.Background(), "j-4")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCrashed, status.Status)
	assert.Contains(t, status.Error, "panic: selector exploded")
	assert.NotEmpty(t, status.Traceback)

	items, err := mr.List("jobs:dead")
	require.NoError(t, err)
	require.Len(t, items, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &entry))
	assert.Equal(t, "j-4", entry["job_id"])

	require.Len(t, n.alerts, 1)
	assert.NotEmpty(t, n.alerts[0].Traceback)
}

func TestRunDrainsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	w, q, _, _ := newTestWorker(t, runner)

	enqueue(t, q, "j-5", "https://news.example/a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.ran) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(8 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
