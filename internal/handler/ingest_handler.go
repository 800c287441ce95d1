package handler

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/pkg/response"
	"github.com/xxxsen/ragkb/internal/service"
)

type IngestHandler struct {
	ingest    *service.IngestService
	maxUpload int64
}

func NewIngestHandler(ingest *service.IngestService, maxUpload int64) *IngestHandler {
	return &IngestHandler{ingest: ingest, maxUpload: maxUpload}
}

type uploadResponse struct {
	TaskID    string `json:"task_id"`
	Filename  string `json:"filename"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (h *IngestHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		handleError(c, fmt.Errorf("upload of %d bytes exceeds %d: %w", file.Size, h.maxUpload, appErr.ErrInvalid))
		return
	}
	src, err := file.Open()
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}
	category := model.Category(c.DefaultPostForm("category", string(model.CategoryUser)))
	task, err := h.ingest.Submit(c.Request.Context(), service.UploadRequest{
		Filename:  file.Filename,
		Data:      data,
		Category:  category,
		SessionID: c.PostForm("session_id"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResponse{
		TaskID:    task.ID,
		Filename:  task.Filename,
		SessionID: task.SessionID,
		Status:    task.Status,
		Message:   "File queued for ingestion",
	})
}

func (h *IngestHandler) Task(c *gin.Context) {
	task, err := h.ingest.Task(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, task)
}
