package handler

import (
	"github.com/gin-gonic/gin"

	appaudit "github.com/vsla/backend/internal/application/audit"
)

// AuditHandler handles audit checklist endpoints
type AuditHandler struct {
	BaseHandler
	service *appaudit.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service *appaudit.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// Start opens a new audit for a group
// POST /api/v1/groups/:id/audit
func (h *AuditHandler) Start(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.Start(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CompleteStep marks the named checklist step as done. Steps must be
// completed in checklist order.
// POST /api/v1/groups/:id/audit/steps/:step/complete
func (h *AuditHandler) CompleteStep(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	req := appaudit.CompleteStepRequest{Step: c.Param("step")}
	resp, err := h.service.CompleteStep(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// GetCurrent returns the group's most recent audit
// GET /api/v1/groups/:id/audits/current
func (h *AuditHandler) GetCurrent(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetCurrent(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
