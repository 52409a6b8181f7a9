package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appledger "github.com/vsla/backend/internal/application/ledger"
)

// LedgerHandler handles the append-only transaction log and projected
// balances of a group
type LedgerHandler struct {
	BaseHandler
	service *appledger.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *appledger.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// Record appends a transaction to a group's ledger. The recording actor
// comes from the request body or the X-Actor-ID header.
// POST /api/v1/groups/:id/transactions
func (h *LedgerHandler) Record(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	var req appledger.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.CreatedBy == uuid.Nil {
		if actorID, err := getActorID(c); err == nil {
			req.CreatedBy = actorID
		}
	}

	resp, err := h.service.RecordTransaction(c.Request.Context(), groupID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List returns a group's transactions, newest first
// GET /api/v1/groups/:id/transactions
func (h *LedgerHandler) List(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	var filter appledger.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.service.ListTransactions(c.Request.Context(), groupID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get returns one transaction by ID, scoped to the group
// GET /api/v1/groups/:id/transactions/:txId
func (h *LedgerHandler) Get(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}
	txID, err := uuid.Parse(c.Param("txId"))
	if err != nil {
		h.BadRequest(c, "invalid transaction ID")
		return
	}

	resp, err := h.service.GetTransaction(c.Request.Context(), groupID, txID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Balance returns the group's projected balance sheet
// GET /api/v1/groups/:id/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	groupID, ok := h.groupID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetBalance(c.Request.Context(), groupID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
