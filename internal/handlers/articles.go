package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/models"
	"github.com/jonesrussell/newsagent/internal/store"
)

// ArticleStore is the repository surface the article handlers need.
// *store.ArticleRepository satisfies it.
type ArticleStore interface {
	GetByID(ctx context.Context, id string) (*models.Article, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Article, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateImage(ctx context.Context, id, imageURL string) error
	Archive(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	StoreResult(ctx context.Context, url string, output json.RawMessage, fallbackSourceID string) error
}

// ArticleHandler serves the article read/editorial endpoints and the
// store-result webhook receiver.
type ArticleHandler struct {
	repo             ArticleStore
	fallbackSourceID string
	logger           logger.Logger
}

// NewArticleHandler builds an ArticleHandler. fallbackSourceID owns article
// rows created for manually submitted URLs.
func NewArticleHandler(repo ArticleStore, fallbackSourceID string, log logger.Logger) *ArticleHandler {
	return &ArticleHandler{repo: repo, fallbackSourceID: fallbackSourceID, logger: log}
}

func (h *ArticleHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "skip", 0)
	status := c.Query("status")

	articles, err := h.repo.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list articles", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

func (h *ArticleHandler) GetByID(c *gin.Context) {
	article, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

type statusPatch struct {
	Status string `json:"status" binding:"required"`
}

func (h *ArticleHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var patch statusPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if !models.ValidEditorialStatus(patch.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status",
			"allowed": models.EditorialStatuses,
		})
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), id, patch.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		h.logger.Error("Failed to update article status",
			logger.String("article_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": patch.Status})
}

type imagePatch struct {
	TopImage string `json:"top_image" binding:"required,url"`
}

func (h *ArticleHandler) UpdateImage(c *gin.Context) {
	id := c.Param("id")

	var patch imagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.repo.UpdateImage(c.Request.Context(), id, patch.TopImage); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		h.logger.Error("Failed to update article image",
			logger.String("article_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "top_image": patch.TopImage})
}

func (h *ArticleHandler) Archive(c *gin.Context) {
	id := c.Param("id")

	if err := h.repo.Archive(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		h.logger.Error("Failed to archive article",
			logger.String("article_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive article"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "archived": true})
}

func (h *ArticleHandler) SoftDelete(c *gin.Context) {
	id := c.Param("id")

	if err := h.repo.SoftDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		h.logger.Error("Failed to delete article",
			logger.String("article_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete article"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

type storeResultRequest struct {
	SourceURL string          `json:"source_url" binding:"required,url"`
	Data      json.RawMessage `json:"data" binding:"required"`
}

// StoreResult is the receiver for the pipeline's terminal webhook. It marks
// the article processed and attaches the enriched output.
func (h *ArticleHandler) StoreResult(c *gin.Context) {
	var req storeResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.repo.StoreResult(c.Request.Context(), req.SourceURL, req.Data, h.fallbackSourceID); err != nil {
		h.logger.Error("Failed to store pipeline result",
			logger.String("source_url", req.SourceURL),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store result"})
		return
	}

	h.logger.Info("Pipeline result stored",
		logger.String("source_url", req.SourceURL),
	)
	c.JSON(http.StatusOK, gin.H{"source_url": req.SourceURL, "status": models.ArticleStatusProcessed})
}
