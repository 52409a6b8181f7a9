package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appaudit "github.com/vsla/backend/internal/application/audit"
	appgroup "github.com/vsla/backend/internal/application/group"
	appledger "github.com/vsla/backend/internal/application/ledger"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/cache"
	"github.com/vsla/backend/internal/infrastructure/coordination"
	"github.com/vsla/backend/internal/interfaces/http/dto"
)

// In-memory repositories backing the API tests

type memGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*group.Group
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: make(map[uuid.UUID]*group.Group)}
}

func (r *memGroupRepo) Create(ctx context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *g
	r.groups[g.ID] = &clone
	return nil
}

func (r *memGroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetails("group %s", id)
	}
	clone := *g
	return &clone, nil
}

func (r *memGroupRepo) FindAll(ctx context.Context, filter shared.Filter) ([]group.Group, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]group.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, *g)
	}
	return out, int64(len(out)), nil
}

func (r *memGroupRepo) Save(ctx context.Context, g *group.Group) error {
	return r.Create(ctx, g)
}

type memMemberRepo struct {
	mu      sync.Mutex
	members map[uuid.UUID]*group.Member
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{members: make(map[uuid.UUID]*group.Member)}
}

func (r *memMemberRepo) Create(ctx context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *m
	r.members[m.ID] = &clone
	return nil
}

func (r *memMemberRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetails("member %s", id)
	}
	clone := *m
	return &clone, nil
}

func (r *memMemberRepo) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]group.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]group.Member, 0)
	for _, m := range r.members {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMemberRepo) Save(ctx context.Context, m *group.Member) error {
	return r.Create(ctx, m)
}

type memTxRepo struct {
	mu  sync.Mutex
	log map[uuid.UUID][]ledger.Transaction
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{log: make(map[uuid.UUID][]ledger.Transaction)}
}

func (r *memTxRepo) Append(ctx context.Context, tx *ledger.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txs := r.log[tx.GroupID]
	tx.Sequence = int64(len(txs)) + 1
	r.log[tx.GroupID] = append(txs, *tx)
	return nil
}

func (r *memTxRepo) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txs := range r.log {
		for i := range txs {
			if txs[i].ID == id {
				clone := txs[i]
				return &clone, nil
			}
		}
	}
	return nil, shared.ErrNotFound.WithDetails("transaction %s", id)
}

func (r *memTxRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txs := r.log[groupID]
	out := make([]ledger.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (r *memTxRepo) ListByGroupPaged(ctx context.Context, groupID uuid.UUID, filter shared.Filter) ([]ledger.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txs := r.log[groupID]
	out := make([]ledger.Transaction, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		out = append(out, txs[i])
	}
	return out, int64(len(txs)), nil
}

func (r *memTxRepo) MaxSequence(ctx context.Context, groupID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.log[groupID])), nil
}

type memLoanRepo struct {
	mu    sync.Mutex
	loans map[uuid.UUID]*loan.Loan
}

func newMemLoanRepo() *memLoanRepo {
	return &memLoanRepo{loans: make(map[uuid.UUID]*loan.Loan)}
}

func (r *memLoanRepo) Create(ctx context.Context, l *loan.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *l
	r.loans[l.ID] = &clone
	return nil
}

func (r *memLoanRepo) Save(ctx context.Context, l *loan.Loan) error {
	return r.Create(ctx, l)
}

func (r *memLoanRepo) FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok {
		return nil, shared.ErrNoSuchLoan.WithDetails("loan %s", id)
	}
	clone := *l
	return &clone, nil
}

func (r *memLoanRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]loan.Loan, 0)
	for _, l := range r.loans {
		if l.GroupID == groupID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memLoanRepo) ListOpen(ctx context.Context) ([]loan.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]loan.Loan, 0)
	for _, l := range r.loans {
		if !l.State.IsTerminal() {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memLoanRepo) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.loans {
		if l.GroupID == groupID {
			delete(r.loans, id)
		}
	}
	return nil
}

// apiFixture wires real services behind a gin router, as the server does
type apiFixture struct {
	router  *gin.Engine
	members *memMemberRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	groups := newMemGroupRepo()
	members := newMemMemberRepo()
	txs := newMemTxRepo()
	loans := newMemLoanRepo()
	coordinator := coordination.NewGroupCoordinator(4)

	groupSvc := appgroup.NewGroupService(groups, members, "UGX")
	ledgerSvc := appledger.NewLedgerService(
		groups, members, txs, loans,
		cache.NewMemoryProjectionCache(),
		coordinator, nil, nil, appledger.Config{},
	)
	auditSvc := appaudit.NewAuditService(newMemAuditRepo(), groups, ledgerSvc, nil, appaudit.Config{})

	groupHandler := NewGroupHandler(groupSvc)
	ledgerHandler := NewLedgerHandler(ledgerSvc)
	auditHandler := NewAuditHandler(auditSvc)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/groups", groupHandler.Create)
	v1.GET("/groups/:id", groupHandler.Get)
	v1.POST("/groups/:id/members", groupHandler.RegisterMember)
	v1.POST("/groups/:id/transactions", ledgerHandler.Record)
	v1.GET("/groups/:id/transactions", ledgerHandler.List)
	v1.GET("/groups/:id/transactions/:txId", ledgerHandler.Get)
	v1.GET("/groups/:id/balance", ledgerHandler.Balance)
	v1.POST("/groups/:id/audit", auditHandler.Start)
	v1.POST("/groups/:id/audit/steps/:step/complete", auditHandler.CompleteStep)
	v1.GET("/groups/:id/audit", auditHandler.GetCurrent)

	return &apiFixture{router: router, members: members}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (f *apiFixture) createGroup(t *testing.T, seedCapital string) uuid.UUID {
	t.Helper()
	w, resp := f.do(t, http.MethodPost, "/api/v1/groups", gin.H{
		"name":         "Kisaasi Savings",
		"seed_capital": seedCapital,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	data := resp.Data.(map[string]interface{})
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	return id
}

func (f *apiFixture) registerMember(t *testing.T, groupID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	w, resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/groups/%s/members", groupID), gin.H{
		"name": name,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	data := resp.Data.(map[string]interface{})
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	return id
}

func TestAPI_RecordDepositAndProjectBalance(t *testing.T) {
	f := newAPIFixture(t)
	groupID := f.createGroup(t, "50000")
	memberID := f.registerMember(t, groupID, "Grace Nakato")

	w, resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/groups/%s/transactions", groupID), gin.H{
		"kind":       "savings_deposit",
		"member_id":  memberID,
		"amount":     "10000",
		"created_by": uuid.New(),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	tx := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), tx["sequence"])
	assert.Equal(t, "10000.00", tx["amount"])

	w, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/groups/%s/balance", groupID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	balance := resp.Data.(map[string]interface{})
	assert.Equal(t, "60000.00", balance["group_total"])
	assert.Equal(t, float64(1), balance["sequence"])

	perMember := balance["per_member"].([]interface{})
	require.Len(t, perMember, 1)
	entry := perMember[0].(map[string]interface{})
	assert.Equal(t, memberID.String(), entry["member_id"])
	assert.Equal(t, "10000.00", entry["balance"])
}

func TestAPI_RecordTransactionActorFromHeader(t *testing.T) {
	f := newAPIFixture(t)
	groupID := f.createGroup(t, "0")
	memberID := f.registerMember(t, groupID, "Grace Nakato")
	actorID := uuid.New()

	body, err := json.Marshal(gin.H{
		"kind":      "savings_deposit",
		"member_id": memberID,
		"amount":    "500",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/groups/%s/transactions", groupID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorIDHeader, actorID.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	tx := resp.Data.(map[string]interface{})
	assert.Equal(t, actorID.String(), tx["created_by"])
}

func TestAPI_RecordTransactionErrors(t *testing.T) {
	f := newAPIFixture(t)
	groupID := f.createGroup(t, "1000")
	memberID := f.registerMember(t, groupID, "Grace Nakato")

	tests := []struct {
		name         string
		body         gin.H
		expectedCode int
		expectedErr  string
	}{
		{
			name: "invalid amount",
			body: gin.H{
				"kind": "savings_deposit", "member_id": memberID,
				"amount": "-5", "created_by": uuid.New(),
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeInvalidAmount,
		},
		{
			name: "unknown member",
			body: gin.H{
				"kind": "savings_deposit", "member_id": uuid.New(),
				"amount": "100", "created_by": uuid.New(),
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeUnknownMember,
		},
		{
			name: "withdrawal beyond savings",
			body: gin.H{
				"kind": "savings_withdrawal", "member_id": memberID,
				"amount": "100000", "created_by": uuid.New(),
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeInsufficientBalance,
		},
		{
			name: "repayment against unknown loan",
			body: gin.H{
				"kind": "loan_repayment", "member_id": memberID,
				"amount": "100", "loan_reference": uuid.New(),
				"created_by": uuid.New(),
			},
			expectedCode: http.StatusNotFound,
			expectedErr:  dto.ErrCodeNoSuchLoan,
		},
		{
			name: "missing actor",
			body: gin.H{
				"kind": "savings_deposit", "member_id": memberID,
				"amount": "100",
			},
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/groups/%s/transactions", groupID), tt.body)
			assert.Equal(t, tt.expectedCode, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
		})
	}
}

func TestAPI_GetTransactionScopedToGroup(t *testing.T) {
	f := newAPIFixture(t)
	groupID := f.createGroup(t, "0")
	memberID := f.registerMember(t, groupID, "Grace Nakato")

	w, resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/groups/%s/transactions", groupID), gin.H{
		"kind": "savings_deposit", "member_id": memberID,
		"amount": "100", "created_by": uuid.New(),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	txID := resp.Data.(map[string]interface{})["id"].(string)

	w, _ = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/groups/%s/transactions/%s", groupID, txID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The same transaction is invisible through another group
	otherGroup := f.createGroup(t, "0")
	w, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/groups/%s/transactions/%s", otherGroup, txID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestAPI_InvalidGroupID(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/v1/groups/not-a-uuid/balance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
}

func TestAPI_UnknownGroup(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/groups/%s/balance", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}
