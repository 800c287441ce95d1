package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/pkg/response"
	"github.com/xxxsen/ragkb/internal/service"
)

type HealthHandler struct {
	health *service.HealthService
}

func NewHealthHandler(health *service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Health is the bare probe endpoint. It always answers 200, degraded or not.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}

func (h *HealthHandler) Envelope(c *gin.Context) {
	response.Success(c, h.health.Check(c.Request.Context()))
}
