package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := New(client, "test:main", "test:dlq", 24*time.Hour, logger.NewNopLogger())
	return q, mr
}

func envelope(id, url string) *models.JobEnvelope {
	return &models.JobEnvelope{
		JobID:      id,
		SourceURL:  url,
		MaxRetries: 3,
		EnqueuedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		_, err := q.Enqueue(ctx, envelope(id, "https://example.com/"+id))
		require.NoError(t, err)
	}

	for _, want := range []string{"job-1", "job-2", "job-3"} {
		env, err := q.DequeueBlocking(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, env.JobID)
	}
}

func TestEnqueueWritesStatusHash(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	pos, err := q.Enqueue(ctx, envelope("job-9", "https://example.com/a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)

	status, err := q.GetStatus(ctx, "job-9")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, status.Status)
	assert.Equal(t, "https://example.com/a", status.SourceURL)

	ttl := mr.TTL("job:job-9")
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestStatusTransitions(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, envelope("job-t", "https://example.com/t"))
	require.NoError(t, err)

	require.NoError(t, q.UpdateStatus(ctx, "job-t", models.JobStatusProcessing))
	status, err := q.GetStatus(ctx, "job-t")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, status.Status)

	require.NoError(t, q.SetResult(ctx, "job-t", `{"title":"x"}`))
	status, err = q.GetStatus(ctx, "job-t")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status.Status)
	assert.Equal(t, `{"title":"x"}`, status.Result)
	// source_url survives partial updates
	assert.Equal(t, "https://example.com/t", status.SourceURL)
}

func TestUpdateStatusExpiredHash(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, envelope("job-x", "https://example.com/x"))
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)

	// an expired hash must not be recreated with only the status field
	assert.ErrorIs(t, q.UpdateStatus(ctx, "job-x", models.JobStatusProcessing), ErrStatusNotFound)
	_, err = q.GetStatus(ctx, "job-x")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestGetStatusMissing(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.GetStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestDeadLetterAndRequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	env := envelope("job-d", "https://example.com/d")
	_, err := q.Enqueue(ctx, env)
	require.NoError(t, err)
	_, err = q.DequeueBlocking(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.DeadLetter(ctx, env, "LLMError: boom", ""))

	mainLen, dlqLen, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mainLen)
	assert.Equal(t, int64(1), dlqLen)

	status, err := q.GetStatus(ctx, "job-d")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status.Status)
	assert.Equal(t, "LLMError: boom", status.Error)

	require.NoError(t, q.Requeue(ctx, "job-d"))

	mainLen, dlqLen, err = q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mainLen)
	assert.Equal(t, int64(0), dlqLen)

	// error cleared on requeue
	status, err = q.GetStatus(ctx, "job-d")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRequeued, status.Status)
	assert.Empty(t, status.Error)

	// the requeued item is the original envelope, not the DLQ wrapper
	got, err := q.DequeueBlocking(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-d", got.JobID)
	assert.Equal(t, 3, got.MaxRetries)
}

func TestDeadLetterCrashStatus(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	env := envelope("job-c", "https://example.com/c")
	require.NoError(t, q.DeadLetter(ctx, env, "panic: nil deref", "goroutine 1 [running]:\nmain.main()"))

	status, err := q.GetStatus(ctx, "job-c")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCrashed, status.Status)
	assert.Contains(t, status.Traceback, "goroutine 1")
}

func TestRequeueMissing(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.Requeue(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRequeueAll(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.DeadLetter(ctx, envelope(id, "https://example.com/"+id), "FetchError", ""))
	}

	moved, err := q.RequeueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	mainLen, dlqLen, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), mainLen)
	assert.Equal(t, int64(0), dlqLen)
}

func TestRequeueAllEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	moved, err := q.RequeueAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestDelete(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.DeadLetter(ctx, envelope("gone", "https://example.com/g"), "FetchError", ""))
	require.NoError(t, q.Delete(ctx, "gone"))

	_, dlqLen, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, dlqLen)

	assert.ErrorIs(t, q.Delete(ctx, "gone"), ErrJobNotFound)
}

func TestPeek(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, err := q.Enqueue(ctx, envelope(id, "https://example.com/"+id))
		require.NoError(t, err)
	}

	items, err := q.Peek(ctx, Main, 1, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var env models.JobEnvelope
	require.NoError(t, json.Unmarshal(items[0], &env))
	// LPUSH prepends, so index 1 from the head is the third-newest item.
	assert.Equal(t, "p3", env.JobID)
}
