package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appgroup "github.com/vsla/backend/internal/application/group"
)

// GroupHandler handles savings group and membership endpoints
type GroupHandler struct {
	BaseHandler
	service *appgroup.GroupService
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(service *appgroup.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

// Create registers a new savings group
// POST /api/v1/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req appgroup.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get returns one group by ID
// GET /api/v1/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetByID(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List returns groups matching the filter
// GET /api/v1/groups
func (h *GroupHandler) List(c *gin.Context) {
	var filter appgroup.GroupListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Rename changes a group's name
// PUT /api/v1/groups/:id
func (h *GroupHandler) Rename(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	var req appgroup.RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Rename(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Dissolve closes a group. The ledger stays readable afterwards.
// POST /api/v1/groups/:id/dissolve
func (h *GroupHandler) Dissolve(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.Dissolve(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterMember adds a member to a group
// POST /api/v1/groups/:id/members
func (h *GroupHandler) RegisterMember(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	var req appgroup.RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.RegisterMember(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListMembers returns all members of a group, active and exited
// GET /api/v1/groups/:id/members
func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, members)
}

// ExitMember marks a member as exited. Their transaction history stays
// in the ledger.
// POST /api/v1/groups/:id/members/:memberId/exit
func (h *GroupHandler) ExitMember(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		h.BadRequest(c, "invalid member ID")
		return
	}

	resp, err := h.service.ExitMember(c.Request.Context(), groupID, memberID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
