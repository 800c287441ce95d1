package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/pkg/response"
)

type cleanupResponse struct {
	Status  string `json:"status"`
	Started bool   `json:"started"`
}

type AdminHandler struct {
	reaper *lifecycle.Reaper
	maxAge time.Duration
}

func NewAdminHandler(reaper *lifecycle.Reaper, maxAge time.Duration) *AdminHandler {
	return &AdminHandler{reaper: reaper, maxAge: maxAge}
}

// Cleanup starts the reaper in the background and acknowledges at once.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		badRequest(c, "invalid force flag")
		return
	}
	maxAge := h.maxAge
	seconds, ok := queryInt(c, "max_age_seconds", -1)
	if !ok {
		badRequest(c, "invalid max_age_seconds")
		return
	}
	if seconds >= 0 {
		maxAge = time.Duration(seconds) * time.Second
	}
	if !h.reaper.Trigger(c.Request.Context(), maxAge, force) {
		response.Success(c, cleanupResponse{Status: "Cleanup already running.", Started: false})
		return
	}
	response.Success(c, cleanupResponse{Status: "Cleanup task started in background.", Started: true})
}
