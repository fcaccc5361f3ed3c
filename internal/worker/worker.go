// Package worker runs the blocking queue consumer: dequeue, execute the
// pipeline, and translate the outcome into status, dead-letter, and
// notification side effects.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/metrics"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/notifier"
	"github.com/jonesrussell/newsagent/internal/pipeline"
	"github.com/jonesrussell/newsagent/internal/queue"
)

const (
	dequeueTimeout   = 5 * time.Second
	reconnectBackoff = 5 * time.Second
)

// Runner executes one job. *pipeline.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, sourceURL string, maxRetries int) *models.WorkflowState
}

// Worker consumes the main queue until its context is cancelled.
type Worker struct {
	queue    *queue.Queue
	runner   Runner
	notifier notifier.Notifier
	log      logger.Logger
}

// New builds a Worker.
func New(q *queue.Queue, runner Runner, n notifier.Notifier, log logger.Logger) *Worker {
	return &Worker{queue: q, runner: runner, notifier: n, log: log}
}

// Run is the consumer loop. In-flight jobs finish before it returns, so a
// SIGTERM drains rather than drops.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker started")
	for {
		env, err := w.queue.DequeueBlocking(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("Worker stopping")
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			w.log.Error("Dequeue failed, backing off", logger.Error(err))
			select {
			case <-time.After(reconnectBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		w.process(ctx, env)
	}
}

// process runs one envelope through the pipeline. Panics are recovered into
// a crashed dead-letter so a bad page or prompt cannot take the worker down.
func (w *Worker) process(ctx context.Context, env *models.JobEnvelope) {
	log := w.log.With(
		logger.String("job_id", env.JobID),
		logger.String("source_url", env.SourceURL))

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			log.Error("Pipeline panicked",
				logger.Any("panic", r),
				logger.String("stack", stack))
			w.deadLetter(ctx, env, fmt.Sprintf("panic: %v", r), stack)
			metrics.JobsProcessed.WithLabelValues(metrics.OutcomeCrashed).Inc()
		}
	}()

	if err := w.queue.UpdateStatus(ctx, env.JobID, models.JobStatusProcessing); err != nil {
		log.Warn("Failed to mark job processing", logger.Error(err))
	}

	start := time.Now()
	state := w.runner.Run(ctx, env.SourceURL, env.MaxRetries)
	elapsed := time.Since(start)

	if state.Failed() {
		log.Warn("Job failed",
			logger.String("error", state.ErrorMessage),
			logger.Duration("elapsed", elapsed))
		w.deadLetter(ctx, env, state.ErrorMessage, "")
		metrics.JobsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
		metrics.JobDuration.WithLabelValues(metrics.OutcomeFailed).Observe(elapsed.Seconds())
		return
	}

	if err := w.queue.SetResult(ctx, env.JobID, "Article processed and delivered"); err != nil {
		log.Warn("Failed to record completion", logger.Error(err))
	}
	metrics.JobsProcessed.WithLabelValues(metrics.OutcomeCompleted).Inc()
	metrics.JobDuration.WithLabelValues(metrics.OutcomeCompleted).Observe(elapsed.Seconds())
	log.Info("Job completed", logger.Duration("elapsed", elapsed))
}

// deadLetter pushes the envelope to the DLQ and notifies, except for robots
// denials, which are operational rather than exceptional.
func (w *Worker) deadLetter(ctx context.Context, env *models.JobEnvelope, jobErr, traceback string) {
	if err := w.queue.DeadLetter(ctx, env, jobErr, traceback); err != nil {
		w.log.Error("Failed to dead-letter job",
			logger.String("job_id", env.JobID),
			logger.Error(err))
	}

	if strings.HasPrefix(jobErr, "Blocked by robots.txt") {
		return
	}
	if err := w.notifier.NotifyFailure(ctx, notifier.Alert{
		JobID:        env.JobID,
		SourceURL:    env.SourceURL,
		ErrorMessage: jobErr,
		Traceback:    traceback,
		OccurredAt:   time.Now().UTC(),
	}); err != nil {
		w.log.Warn("Failure notification not sent", logger.Error(err))
	}
}

var _ Runner = (*pipeline.Executor)(nil)
