package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/pkg/response"
	"github.com/xxxsen/ragkb/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Context(c *gin.Context) {
	page, ok := queryInt(c, "page", 0)
	if !ok || c.Query("page") == "" {
		badRequest(c, "page is required")
		return
	}
	pc, err := h.documents.PageContext(c.Request.Context(), c.Param("filename"), page, c.Query("session_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, pc)
}
