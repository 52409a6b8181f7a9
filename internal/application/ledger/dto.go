package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/ledger"
)

// RecordTransactionRequest represents a request to append a transaction
// to a group's ledger
type RecordTransactionRequest struct {
	Kind                string            `json:"kind" binding:"required"`
	MemberID            *uuid.UUID        `json:"member_id"`
	Amount              string            `json:"amount" binding:"required"`
	LoanReference       *uuid.UUID        `json:"loan_reference"`
	MonthlyInterestRate string            `json:"monthly_interest_rate"`
	DueDate             *time.Time        `json:"due_date"`
	Metadata            map[string]string `json:"metadata"`
	CreatedBy           uuid.UUID         `json:"created_by"`
}

// TransactionListFilter represents filter options for the transaction list
type TransactionListFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TransactionResponse represents a committed ledger transaction
type TransactionResponse struct {
	ID            uuid.UUID         `json:"id"`
	GroupID       uuid.UUID         `json:"group_id"`
	Sequence      int64             `json:"sequence"`
	MemberID      *uuid.UUID        `json:"member_id,omitempty"`
	Kind          string            `json:"kind"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	LoanReference *uuid.UUID        `json:"loan_reference,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedBy     uuid.UUID         `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MemberBalanceResponse is one member's projected savings balance
type MemberBalanceResponse struct {
	MemberID uuid.UUID `json:"member_id"`
	Balance  string    `json:"balance"`
}

// BalanceResponse is the projected balance sheet of a group
type BalanceResponse struct {
	GroupID     uuid.UUID               `json:"group_id"`
	GroupTotal  string                  `json:"group_total"`
	Currency    string                  `json:"currency"`
	Sequence    int64                   `json:"sequence"`
	PerMember   []MemberBalanceResponse `json:"per_member"`
	ProjectedAt time.Time               `json:"projected_at"`
}

// ToTransactionResponse converts a transaction to its API representation
func ToTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		GroupID:       tx.GroupID,
		Sequence:      tx.Sequence,
		MemberID:      tx.MemberID,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount.StringFixed(2),
		Currency:      string(tx.Amount.Currency()),
		LoanReference: tx.LoanReference,
		Metadata:      tx.Metadata,
		CreatedBy:     tx.CreatedBy,
		CreatedAt:     tx.CreatedAt,
	}
}

// ToBalanceResponse converts a projected balance sheet to its API
// representation. Member balances are ordered by member ID so responses
// are stable across calls.
func ToBalanceResponse(sheet *ledger.BalanceSheet) BalanceResponse {
	perMember := make([]MemberBalanceResponse, 0, len(sheet.PerMember))
	for memberID, balance := range sheet.PerMember {
		perMember = append(perMember, MemberBalanceResponse{
			MemberID: memberID,
			Balance:  balance.StringFixed(2),
		})
	}
	sort.Slice(perMember, func(i, j int) bool {
		return perMember[i].MemberID.String() < perMember[j].MemberID.String()
	})

	return BalanceResponse{
		GroupID:     sheet.GroupID,
		GroupTotal:  sheet.GroupTotal.StringFixed(2),
		Currency:    string(sheet.GroupTotal.Currency()),
		Sequence:    sheet.Sequence,
		PerMember:   perMember,
		ProjectedAt: sheet.ProjectedAt,
	}
}
