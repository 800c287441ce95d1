package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragkb/internal/analytics"
	"github.com/xxxsen/ragkb/internal/pkg/response"
)

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

// Stats never fails; bad input falls back to the 7 day view.
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	report := h.aggregator.Aggregate(c.Request.Context(), analytics.RangeRequest{
		Range: c.DefaultQuery("range", analytics.Range7D),
		Start: c.Query("start"),
		End:   c.Query("end"),
	})
	response.Success(c, report)
}
