package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/middleware"
	"github.com/xxxsen/ragkb/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

var errorMappings = []errorMapping{
	{appErr.ErrUnsupportedFormat, http.StatusBadRequest, errcode.ErrUnsupportedFormat, "only .txt, .md and .pdf files are supported"},
	{appErr.ErrCapacityExceeded, http.StatusServiceUnavailable, errcode.ErrCapacityExceeded, "system busy, ingestion queue full"},
	{appErr.ErrNotFound, http.StatusNotFound, errcode.ErrNotFound, "not found"},
	{appErr.ErrRange, http.StatusBadRequest, errcode.ErrRange, "page out of range"},
	{appErr.ErrInvalid, http.StatusBadRequest, errcode.ErrInvalid, "invalid request"},
	{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests"},
	{appErr.ErrAIUnavailable, http.StatusServiceUnavailable, errcode.ErrAIUnavailable, "ai backend unavailable"},
	{appErr.ErrTransientStore, http.StatusServiceUnavailable, errcode.ErrStoreUnavailable, "storage temporarily unavailable"},
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.RequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			response.ErrorStatus(c, m.status, m.code, m.message)
			return
		}
	}
	response.ErrorStatus(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
}

func badRequest(c *gin.Context, message string) {
	response.ErrorStatus(c, http.StatusBadRequest, errcode.ErrInvalid, message)
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	value := c.Query(key)
	if value == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
