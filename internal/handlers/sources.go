package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/store"
)

// SourceStore is the repository surface the source handlers need.
// *store.SourceRepository satisfies it.
type SourceStore interface {
	Create(ctx context.Context, source *models.Source) error
	GetByID(ctx context.Context, id string) (*models.Source, error)
	List(ctx context.Context) ([]models.Source, error)
	Update(ctx context.Context, source *models.Source) error
	Toggle(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// DiscoveryRunner forces a discovery pass for one source.
type DiscoveryRunner interface {
	RunSource(ctx context.Context, id string) error
}

// SourceHandler serves the source CRUD and run-now endpoints.
type SourceHandler struct {
	repo   SourceStore
	runner DiscoveryRunner
	logger logger.Logger
}

// NewSourceHandler builds a SourceHandler.
func NewSourceHandler(repo SourceStore, runner DiscoveryRunner, log logger.Logger) *SourceHandler {
	return &SourceHandler{repo: repo, runner: runner, logger: log}
}

func (h *SourceHandler) Create(c *gin.Context) {
	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if source.ListingURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_url is required"})
		return
	}

	if err := h.repo.Create(c.Request.Context(), &source); err != nil {
		h.logger.Error("Failed to create source",
			logger.String("source_name", source.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	h.logger.Info("Source created",
		logger.String("source_id", source.ID),
		logger.String("listing_url", source.ListingURL),
	)
	c.JSON(http.StatusCreated, source)
}

func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

func (h *SourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	source, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	c.JSON(http.StatusOK, source)
}

func (h *SourceHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	source.ID = id

	if err := h.repo.Update(c.Request.Context(), &source); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to update source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, source)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *SourceHandler) Toggle(c *gin.Context) {
	id := c.Param("id")

	active, err := h.repo.Toggle(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to toggle source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle source"})
		return
	}

	h.logger.Info("Source toggled",
		logger.String("source_id", id),
		logger.Bool("is_active", active),
	)
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

func (h *SourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to delete source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete source"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

// RunNow forces a discovery pass outside the source's interval.
func (h *SourceHandler) RunNow(c *gin.Context) {
	id := c.Param("id")

	if err := h.runner.RunSource(c.Request.Context(), id); err != nil {
		h.logger.Error("Run-now failed",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found or run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": "completed"})
}
