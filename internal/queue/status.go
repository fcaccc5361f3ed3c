package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/newsagent/internal/models"
)

// ErrStatusNotFound is returned when a job's status hash is absent or has
// expired.
var ErrStatusNotFound = errors.New("job status not found")

func statusKey(jobID string) string {
	return "job:" + jobID
}

// SetStatus writes the full status hash for a job and refreshes its TTL.
// Empty optional fields are deleted so a requeue clears stale errors.
func (q *Queue) SetStatus(ctx context.Context, jobID string, status *models.JobStatus) error {
	key := statusKey(jobID)

	fields := map[string]any{
		"status":     status.Status,
		"source_url": status.SourceURL,
		"created_at": status.CreatedAt,
	}
	if status.Result != "" {
		fields["result"] = status.Result
	}
	if status.Error != "" {
		fields["error"] = status.Error
	}
	if status.Traceback != "" {
		fields["traceback"] = status.Traceback
	}

	pipe := q.client.TxPipeline()
	if status.Error == "" {
		pipe.HDel(ctx, key, "error", "traceback")
	}
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, q.statusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write status %s: %w", key, err)
	}
	return nil
}

// UpdateStatus changes only the status field, preserving the rest of the
// hash. Used for the queued -> processing -> completed transitions. Returns
// ErrStatusNotFound once the hash has expired; recreating it here would
// leave a record with no source_url or created_at.
func (q *Queue) UpdateStatus(ctx context.Context, jobID, newStatus string) error {
	key := statusKey(jobID)

	exists, err := q.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("update status %s: %w", key, err)
	}
	if exists == 0 {
		return fmt.Errorf("update status %s: %w", key, ErrStatusNotFound)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, "status", newStatus)
	pipe.Expire(ctx, key, q.statusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update status %s: %w", key, err)
	}
	return nil
}

// SetResult records the serialized pipeline result alongside a completed
// status.
func (q *Queue) SetResult(ctx context.Context, jobID, result string) error {
	key := statusKey(jobID)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"status": models.JobStatusCompleted,
		"result": result,
	})
	pipe.Expire(ctx, key, q.statusTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set result %s: %w", key, err)
	}
	return nil
}

// GetStatus reads a job's status hash.
func (q *Queue) GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	fields, err := q.client.HGetAll(ctx, statusKey(jobID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read status %s: %w", statusKey(jobID), err)
	}
	if len(fields) == 0 {
		return nil, ErrStatusNotFound
	}

	return &models.JobStatus{
		JobID:     jobID,
		Status:    fields["status"],
		SourceURL: fields["source_url"],
		CreatedAt: fields["created_at"],
		Result:    fields["result"],
		Error:     fields["error"],
		Traceback: fields["traceback"],
	}, nil
}

// StatusTTL exposes the configured hash expiry, mainly for tests.
func (q *Queue) StatusTTL() time.Duration {
	return q.statusTTL
}
