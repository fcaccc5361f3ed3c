// Package queue implements the Redis-backed work queue: a FIFO list for
// pending jobs, a dead-letter list for failures, and a per-job status hash
// used by the API for introspection.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
)

// ErrJobNotFound is returned when a requeue or delete targets a job id that
// is not present on the DLQ.
var ErrJobNotFound = errors.New("job not found in dead-letter queue")

// Queue wraps the main and dead-letter lists. Producers LPUSH to the head;
// the worker BRPOPs from the tail, so a single producer observes strict FIFO.
type Queue struct {
	client    *redis.Client
	mainName  string
	dlqName   string
	statusTTL time.Duration
	log       logger.Logger
}

// New creates a Queue over an existing Redis client.
func New(client *redis.Client, mainName, dlqName string, statusTTL time.Duration, log logger.Logger) *Queue {
	return &Queue{
		client:    client,
		mainName:  mainName,
		dlqName:   dlqName,
		statusTTL: statusTTL,
		log:       log,
	}
}

// Connect dials Redis from a URL and verifies the connection.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}
	return client, nil
}

// Ping reports queue reachability, used by /health.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes an envelope onto the main list and writes its status hash.
// Returns the queue length after the push, which the API reports as a
// point-in-time queue position.
func (q *Queue) Enqueue(ctx context.Context, env *models.JobEnvelope) (int64, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}

	length, err := q.client.LPush(ctx, q.mainName, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("lpush %s: %w", q.mainName, err)
	}

	if statusErr := q.SetStatus(ctx, env.JobID, &models.JobStatus{
		Status:    models.JobStatusQueued,
		SourceURL: env.SourceURL,
		CreatedAt: env.EnqueuedAt.UTC().Format(time.RFC3339),
	}); statusErr != nil {
		q.log.Warn("Failed to write initial job status",
			logger.String("job_id", env.JobID),
			logger.Error(statusErr),
		)
	}

	return length, nil
}

// DequeueBlocking pops the oldest envelope from the main list, blocking up
// to timeout (0 = forever). The caller transitions the job to processing
// immediately after this returns.
func (q *Queue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*models.JobEnvelope, error) {
	res, err := q.client.BRPop(ctx, timeout, q.mainName).Result()
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", q.mainName, err)
	}
	// BRPOP returns [list, payload].
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply of %d elements", q.mainName, len(res))
	}

	var env models.JobEnvelope
	if unmarshalErr := json.Unmarshal([]byte(res[1]), &env); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", unmarshalErr)
	}
	return &env, nil
}

// DeadLetter pushes a failed envelope onto the DLQ with the error attached
// and marks the status hash failed (or crashed when a traceback is present).
func (q *Queue) DeadLetter(ctx context.Context, env *models.JobEnvelope, jobErr string, traceback string) error {
	entry := deadLetterEntry{
		JobEnvelope: *env,
		Error:       jobErr,
		Traceback:   traceback,
		FailedAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}

	if pushErr := q.client.LPush(ctx, q.dlqName, payload).Err(); pushErr != nil {
		return fmt.Errorf("lpush %s: %w", q.dlqName, pushErr)
	}

	status := models.JobStatusFailed
	if traceback != "" {
		status = models.JobStatusCrashed
	}

	return q.SetStatus(ctx, env.JobID, &models.JobStatus{
		Status:    status,
		SourceURL: env.SourceURL,
		CreatedAt: env.EnqueuedAt.UTC().Format(time.RFC3339),
		Error:     jobErr,
		Traceback: traceback,
	})
}

// deadLetterEntry is the on-wire shape of a DLQ item: the original envelope
// plus failure metadata.
type deadLetterEntry struct {
	models.JobEnvelope
	Error     string    `json:"error"`
	Traceback string    `json:"traceback,omitempty"`
	FailedAt  time.Time `json:"failed_at"`
}

// Requeue scans the DLQ for the given job id, removes it, and pushes the
// original envelope back onto the main list. The scan is O(N) over the DLQ,
// which is acceptable at dead-letter volumes.
func (q *Queue) Requeue(ctx context.Context, jobID string) error {
	items, err := q.client.LRange(ctx, q.dlqName, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("lrange %s: %w", q.dlqName, err)
	}

	for _, raw := range items {
		var entry deadLetterEntry
		if json.Unmarshal([]byte(raw), &entry) != nil {
			continue
		}
		if entry.JobID != jobID {
			continue
		}

		if remErr := q.client.LRem(ctx, q.dlqName, 1, raw).Err(); remErr != nil {
			return fmt.Errorf("lrem %s: %w", q.dlqName, remErr)
		}

		payload, marshalErr := json.Marshal(entry.JobEnvelope)
		if marshalErr != nil {
			return fmt.Errorf("marshal envelope: %w", marshalErr)
		}
		if pushErr := q.client.LPush(ctx, q.mainName, payload).Err(); pushErr != nil {
			return fmt.Errorf("lpush %s: %w", q.mainName, pushErr)
		}

		return q.SetStatus(ctx, jobID, &models.JobStatus{
			Status:    models.JobStatusRequeued,
			SourceURL: entry.SourceURL,
			CreatedAt: entry.EnqueuedAt.UTC().Format(time.RFC3339),
		})
	}

	return ErrJobNotFound
}

// RequeueAll drains the DLQ back onto the main list one item at a time.
// Each move is a single RPOPLPUSH, so a crash mid-drain loses nothing.
func (q *Queue) RequeueAll(ctx context.Context) (int, error) {
	moved := 0
	for {
		raw, err := q.client.RPopLPush(ctx, q.dlqName, q.mainName).Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("rpoplpush %s -> %s: %w", q.dlqName, q.mainName, err)
		}
		moved++

		var entry deadLetterEntry
		if json.Unmarshal([]byte(raw), &entry) == nil && entry.JobID != "" {
			if statusErr := q.SetStatus(ctx, entry.JobID, &models.JobStatus{
				Status:    models.JobStatusRequeued,
				SourceURL: entry.SourceURL,
				CreatedAt: entry.EnqueuedAt.UTC().Format(time.RFC3339),
			}); statusErr != nil {
				q.log.Warn("Failed to update status on requeue-all",
					logger.String("job_id", entry.JobID),
					logger.Error(statusErr),
				)
			}
		}
	}
}

// Delete removes a single job from the DLQ without requeuing it.
func (q *Queue) Delete(ctx context.Context, jobID string) error {
	items, err := q.client.LRange(ctx, q.dlqName, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("lrange %s: %w", q.dlqName, err)
	}

	for _, raw := range items {
		var entry deadLetterEntry
		if json.Unmarshal([]byte(raw), &entry) != nil || entry.JobID != jobID {
			continue
		}
		if remErr := q.client.LRem(ctx, q.dlqName, 1, raw).Err(); remErr != nil {
			return fmt.Errorf("lrem %s: %w", q.dlqName, remErr)
		}
		return nil
	}
	return ErrJobNotFound
}

// List selects which queue Peek and Counts report on.
type List string

const (
	Main List = "main"
	DLQ  List = "dlq"
)

// Peek returns a paginated window of raw queue items without consuming them.
func (q *Queue) Peek(ctx context.Context, list List, offset, limit int64) ([]json.RawMessage, error) {
	name := q.mainName
	if list == DLQ {
		name = q.dlqName
	}

	items, err := q.client.LRange(ctx, name, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", name, err)
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		out = append(out, json.RawMessage(raw))
	}
	return out, nil
}

// Counts returns the lengths of the main and dead-letter lists.
func (q *Queue) Counts(ctx context.Context) (mainLen, dlqLen int64, err error) {
	mainLen, err = q.client.LLen(ctx, q.mainName).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", q.mainName, err)
	}
	dlqLen, err = q.client.LLen(ctx, q.dlqName).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", q.dlqName, err)
	}
	return mainLen, dlqLen, nil
}
