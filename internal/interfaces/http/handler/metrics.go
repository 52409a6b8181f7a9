package handler

import (
	"github.com/gin-gonic/gin"

	appmetrics "github.com/vsla/backend/internal/application/metrics"
)

// MetricsHandler handles group health report endpoints
type MetricsHandler struct {
	BaseHandler
	service *appmetrics.MetricsService
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(service *appmetrics.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// Report computes the group's health metrics from its ledger, loan book
// and officer roster
// GET /api/v1/groups/:id/metrics
func (h *MetricsHandler) Report(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.Report(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
