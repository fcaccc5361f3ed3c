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

// PromptStore is the repository surface for prompt administration.
type PromptStore interface {
	Create(ctx context.Context, prompt *models.Prompt) error
	GetByID(ctx context.Context, id string) (*models.Prompt, error)
	Activate(ctx context.Context, id string) error
}

// CategoryStore is the repository surface for category administration.
type CategoryStore interface {
	Mapping(ctx context.Context) (map[string]string, error)
	Create(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

// RecipientStore is the repository surface for the notification list.
type RecipientStore interface {
	ActiveEmails(ctx context.Context) ([]string, error)
	Create(ctx context.Context, recipient *models.EmailRecipient) error
	Delete(ctx context.Context, id string) error
}

// AdminHandler serves prompt, category, and recipient administration.
type AdminHandler struct {
	prompts    PromptStore
	categories CategoryStore
	recipients RecipientStore
	logger     logger.Logger
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(prompts PromptStore, categories CategoryStore, recipients RecipientStore, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		prompts:    prompts,
		categories: categories,
		recipients: recipients,
		logger:     log,
	}
}

func (h *AdminHandler) CreatePrompt(c *gin.Context) {
	var prompt models.Prompt
	if err := c.ShouldBindJSON(&prompt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if prompt.Name == "" || prompt.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and content are required"})
		return
	}

	if err := h.prompts.Create(c.Request.Context(), &prompt); err != nil {
		h.logger.Error("Failed to create prompt",
			logger.String("prompt_name", prompt.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create prompt"})
		return
	}

	c.JSON(http.StatusCreated, prompt)
}

func (h *AdminHandler) GetPrompt(c *gin.Context) {
	prompt, err := h.prompts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// ActivatePrompt makes one version active and archives the previous active
// version of the same name.
func (h *AdminHandler) ActivatePrompt(c *gin.Context) {
	id := c.Param("id")

	if err := h.prompts.Activate(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Prompt not found"})
			return
		}
		h.logger.Error("Failed to activate prompt",
			logger.String("prompt_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate prompt"})
		return
	}

	h.logger.Info("Prompt activated", logger.String("prompt_id", id))
	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.PromptStatusActive})
}

func (h *AdminHandler) ListCategories(c *gin.Context) {
	mapping, err := h.categories.Mapping(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load categories", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": mapping, "count": len(mapping)})
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if category.Name == "" || category.ExternalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and external_id are required"})
		return
	}

	if err := h.categories.Create(c.Request.Context(), &category); err != nil {
		h.logger.Error("Failed to create category",
			logger.String("category_name", category.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")

	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (h *AdminHandler) CreateRecipient(c *gin.Context) {
	var recipient models.EmailRecipient
	if err := c.ShouldBindJSON(&recipient); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if recipient.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	if err := h.recipients.Create(c.Request.Context(), &recipient); err != nil {
		h.logger.Error("Failed to create recipient",
			logger.String("email", recipient.Email),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create recipient"})
		return
	}

	c.JSON(http.StatusCreated, recipient)
}

func (h *AdminHandler) DeleteRecipient(c *gin.Context) {
	id := c.Param("id")

	if err := h.recipients.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete recipient"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
