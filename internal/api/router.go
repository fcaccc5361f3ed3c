// Package api assembles the gin routers for the two HTTP surfaces: the Job
// API and the scheduler's source/article/admin surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/newsagent/internal/handlers"
	"github.com/jonesrussell/newsagent/internal/metrics"
)

// NewJobRouter wires the Job API. Everything except /health and /metrics
// requires the API key.
func NewJobRouter(h *handlers.JobHandler, apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := r.Group("/", handlers.APIKeyAuth(apiKey))
	{
		authed.POST("/submit-job", h.Submit)
		authed.GET("/jobs/:id", h.GetJob)

		authed.GET("/queue/status", h.QueueStatus)
		authed.GET("/queue/main/items", h.MainItems)
		authed.GET("/queue/dlq/items", h.DLQItems)
		authed.GET("/queue/dlq/count", h.DLQCount)
		authed.POST("/queue/dlq/requeue/:job_id", h.Requeue)
		authed.POST("/queue/dlq/requeue-all", h.RequeueAll)
		authed.DELETE("/queue/dlq/:job_id", h.DeleteDLQ)
	}

	return r
}

// SchedulerRouterDeps collects the scheduler surface's handlers and secrets.
type SchedulerRouterDeps struct {
	Sources       *handlers.SourceHandler
	Articles      *handlers.ArticleHandler
	Admin         *handlers.AdminHandler
	APIKey        string
	WebhookSecret string
	// Ping reports datastore reachability for /health.
	Ping func() error
}

// NewSchedulerRouter wires the scheduler surface. The store-result receiver
// is guarded by the webhook secret; everything else by the API key.
func NewSchedulerRouter(deps SchedulerRouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if deps.Ping != nil {
			if err := deps.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/webhook/store-result",
		handlers.WebhookSecretAuth(deps.WebhookSecret),
		deps.Articles.StoreResult)

	authed := r.Group("/", handlers.APIKeyAuth(deps.APIKey))
	{
		authed.POST("/sources", deps.Sources.Create)
		authed.GET("/sources", deps.Sources.List)
		authed.GET("/sources/:id", deps.Sources.GetByID)
		authed.PATCH("/sources/:id", deps.Sources.Update)
		authed.DELETE("/sources/:id", deps.Sources.Delete)
		authed.POST("/sources/:id/toggle", deps.Sources.Toggle)
		authed.POST("/sources/:id/run-now", deps.Sources.RunNow)

		authed.GET("/articles", deps.Articles.List)
		authed.GET("/articles/:id", deps.Articles.GetByID)
		authed.PATCH("/articles/:id/status", deps.Articles.UpdateStatus)
		authed.PATCH("/articles/:id/image", deps.Articles.UpdateImage)
		authed.POST("/articles/:id/archive", deps.Articles.Archive)
		authed.DELETE("/articles/:id", deps.Articles.SoftDelete)

		authed.POST("/prompts", deps.Admin.CreatePrompt)
		authed.GET("/prompts/:id", deps.Admin.GetPrompt)
		authed.POST("/prompts/:id/activate", deps.Admin.ActivatePrompt)

		authed.GET("/categories", deps.Admin.ListCategories)
		authed.POST("/categories", deps.Admin.CreateCategory)
		authed.DELETE("/categories/:id", deps.Admin.DeleteCategory)

		authed.POST("/recipients", deps.Admin.CreateRecipient)
		authed.DELETE("/recipients/:id", deps.Admin.DeleteRecipient)
	}

	return r
}
