package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/pkg/response"
	"github.com/xxxsen/ragkb/internal/service"
)

type HistoryHandler struct {
	sessions *service.SessionService
}

func NewHistoryHandler(sessions *service.SessionService) *HistoryHandler {
	return &HistoryHandler{sessions: sessions}
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

type appendMessageRequest struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Sources []model.Source `json:"sources"`
}

func (h *HistoryHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req.SessionID, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *HistoryHandler) ListSessions(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		badRequest(c, "invalid limit")
		return
	}
	sessions, err := h.sessions.List(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessions)
}

func (h *HistoryHandler) Messages(c *gin.Context) {
	msgs, err := h.sessions.Messages(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msgs)
}

func (h *HistoryHandler) AppendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	msg, err := h.sessions.AppendMessage(c.Request.Context(), c.Param("session_id"), req.Role, req.Content, req.Sources)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msg)
}

func (h *HistoryHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "deleted", "session_id": sessionID})
}
