package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/metrics"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/queue"
)

// JobHandler serves the Job API: submission, introspection, and DLQ ops.
type JobHandler struct {
	queue      *queue.Queue
	verifyExec func() error
	maxRetries int
	logger     logger.Logger
}

// NewJobHandler builds a JobHandler. verifyExec is consulted by the health
// endpoint to prove the pipeline can be constructed from current config.
func NewJobHandler(q *queue.Queue, verifyExec func() error, maxRetries int, log logger.Logger) *JobHandler {
	return &JobHandler{
		queue:      q,
		verifyExec: verifyExec,
		maxRetries: maxRetries,
		logger:     log,
	}
}

// Health reports queue reachability and pipeline constructibility.
func (h *JobHandler) Health(c *gin.Context) {
	redisStatus := "ok"
	graphStatus := "ok"
	code := http.StatusOK

	if err := h.queue.Ping(c.Request.Context()); err != nil {
		redisStatus = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := h.verifyExec(); err != nil {
		graphStatus = err.Error()
		code = http.StatusServiceUnavailable
	}

	status := "healthy"
	if code != http.StatusOK {
		status = "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":      status,
		"redis":       redisStatus,
		"graph_logic": graphStatus,
	})
}

type submitRequest struct {
	SourceURL  string `json:"source_url" binding:"required,url"`
	MaxRetries int    `json:"max_retries"`
}

// Submit accepts a URL and enqueues it.
func (h *JobHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = h.maxRetries
	}

	env := &models.JobEnvelope{
		JobID:      uuid.NewString(),
		SourceURL:  req.SourceURL,
		MaxRetries: req.MaxRetries,
		EnqueuedAt: time.Now().UTC(),
	}

	position, err := h.queue.Enqueue(c.Request.Context(), env)
	if err != nil {
		h.logger.Error("Failed to enqueue job",
			logger.String("source_url", req.SourceURL),
			logger.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue unavailable"})
		return
	}

	metrics.JobsSubmitted.Inc()
	h.logger.Info("Job submitted",
		logger.String("job_id", env.JobID),
		logger.String("source_url", req.SourceURL),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":         env.JobID,
		"status":         models.JobStatusQueued,
		"queue_position": position,
		"message":        "Job accepted for processing",
	})
}

// GetJob reads the per-job status hash.
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	status, err := h.queue.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrStatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found or status expired"})
			return
		}
		h.logger.Error("Failed to read job status",
			logger.String("job_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read job status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// QueueStatus returns both list lengths.
func (h *JobHandler) QueueStatus(c *gin.Context) {
	mainLen, dlqLen, err := h.queue.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue unavailable"})
		return
	}

	metrics.QueueDepth.WithLabelValues("main").Set(float64(mainLen))
	metrics.QueueDepth.WithLabelValues("dlq").Set(float64(dlqLen))

	c.JSON(http.StatusOK, gin.H{
		"main_queue": mainLen,
		"dlq":        dlqLen,
	})
}

func (h *JobHandler) peek(c *gin.Context, list queue.List) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	items, err := h.queue.Peek(c.Request.Context(), list, int64(offset), int64(limit))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// MainItems pages through the main queue.
func (h *JobHandler) MainItems(c *gin.Context) { h.peek(c, queue.Main) }

// DLQItems pages through the dead-letter queue.
func (h *JobHandler) DLQItems(c *gin.Context) { h.peek(c, queue.DLQ) }

// DLQCount returns only the dead-letter length.
func (h *JobHandler) DLQCount(c *gin.Context) {
	_, dlqLen, err := h.queue.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": dlqLen})
}

// Requeue moves one dead-lettered job back onto the main queue.
func (h *JobHandler) Requeue(c *gin.Context) {
	id := c.Param("job_id")

	if err := h.queue.Requeue(c.Request.Context(), id); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found in dead-letter queue"})
			return
		}
		h.logger.Error("Requeue failed", logger.String("job_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Requeue failed"})
		return
	}

	h.logger.Info("Job requeued", logger.String("job_id", id))
	c.JSON(http.StatusOK, gin.H{"job_id": id, "status": models.JobStatusRequeued})
}

// RequeueAll drains the dead-letter queue back onto the main queue.
func (h *JobHandler) RequeueAll(c *gin.Context) {
	moved, err := h.queue.RequeueAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Requeue-all failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Requeue-all failed"})
		return
	}

	h.logger.Info("Dead-letter queue drained", logger.Int("moved", moved))
	c.JSON(http.StatusOK, gin.H{"requeued": moved})
}

// DeleteDLQ removes one job from the dead-letter queue.
func (h *JobHandler) DeleteDLQ(c *gin.Context) {
	id := c.Param("job_id")

	if err := h.queue.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found in dead-letter queue"})
			return
		}
		h.logger.Error("DLQ delete failed", logger.String("job_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": id, "deleted": true})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
