package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apploan "github.com/vsla/backend/internal/application/loan"
)

// LoanHandler handles loan book endpoints. Loans are derived from the
// ledger; the only writes here are the overdue sweep and the rebuild.
type LoanHandler struct {
	BaseHandler
	service *apploan.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(service *apploan.LoanService) *LoanHandler {
	return &LoanHandler{service: service}
}

// Get returns one loan by ID, scoped to the group
// GET /api/v1/groups/:id/loans/:loanId
func (h *LoanHandler) Get(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}
	loanID, err := uuid.Parse(c.Param("loanId"))
	if err != nil {
		h.BadRequest(c, "invalid loan ID")
		return
	}

	resp, err := h.service.GetByID(c.Request.Context(), groupID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List returns all loans of a group
// GET /api/v1/groups/:id/loans
func (h *LoanHandler) List(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	loans, err := h.service.ListByGroup(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loans)
}

// Sweep scans open loans across all groups and marks overdue and
// defaulted loans. The optional as_of query pins the evaluation time,
// mainly for backfills.
// POST /api/v1/admin/loans/sweep
func (h *LoanHandler) Sweep(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "as_of must be RFC3339")
			return
		}
		asOf = parsed
	}

	result, err := h.service.SweepOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Rebuild replays a group's ledger and replaces its loan book with the
// derived state
// POST /api/v1/groups/:id/loans/rebuild
func (h *LoanHandler) Rebuild(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	result, err := h.service.RebuildGroup(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
