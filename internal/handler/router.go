package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/middleware"
)

type RouterDeps struct {
	Ingest    *IngestHandler
	Query     *QueryHandler
	History   *HistoryHandler
	Documents *DocumentHandler
	Analytics *AnalyticsHandler
	Admin     *AdminHandler
	Health    *HealthHandler

	RateLimit       int
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimit, deps.RateLimitWindow))
	limited.POST("/upload", deps.Ingest.Upload)
	limited.POST("/query", deps.Query.Query)

	api.GET("/tasks/:id", deps.Ingest.Task)

	api.POST("/history/sessions", deps.History.CreateSession)
	api.GET("/history/sessions", deps.History.ListSessions)
	api.DELETE("/history/sessions/:session_id", deps.History.DeleteSession)
	api.GET("/history/:session_id/messages", deps.History.Messages)
	api.POST("/history/:session_id/messages", deps.History.AppendMessage)

	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:filename/context", deps.Documents.Context)

	api.GET("/analytics/stats", deps.Analytics.Stats)
	api.POST("/admin/cleanup", deps.Admin.Cleanup)
	api.GET("/health", deps.Health.Envelope)
}

// Mount puts the api engine behind a root router that also answers /health.
func Mount(api http.Handler, health *HealthHandler) http.Handler {
	root := gin.New()
	root.Use(gin.Recovery())
	root.GET("/health", health.Health)
	root.NoRoute(gin.WrapH(api))
	return root
}
