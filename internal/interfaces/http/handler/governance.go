package handler

import (
	"github.com/gin-gonic/gin"

	appgovernance "github.com/vsla/backend/internal/application/governance"
)

// GovernanceHandler handles officer rotation endpoints
type GovernanceHandler struct {
	BaseHandler
	service *appgovernance.GovernanceService
}

// NewGovernanceHandler creates a new GovernanceHandler
func NewGovernanceHandler(service *appgovernance.GovernanceService) *GovernanceHandler {
	return &GovernanceHandler{service: service}
}

// Assign rotates an officer role to a member. Any current holder's
// tenure is closed in the same operation.
// POST /api/v1/groups/:id/officers
func (h *GovernanceHandler) Assign(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	var req appgovernance.AssignOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.AssignOfficer(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Roster returns the current holder of each officer role
// GET /api/v1/groups/:id/officers
func (h *GovernanceHandler) Roster(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetRoster(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// History returns all officer tenures of a group, newest first
// GET /api/v1/groups/:id/officers/history
func (h *GovernanceHandler) History(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}
