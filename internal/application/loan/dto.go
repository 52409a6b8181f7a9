package loan

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/loan"
)

// RepaymentResponse is one repayment applied to a loan
type RepaymentResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// LoanResponse represents a loan in API responses. Outstanding is computed
// as of the response time.
type LoanResponse struct {
	ID                  uuid.UUID           `json:"id"`
	GroupID             uuid.UUID           `json:"group_id"`
	MemberID            uuid.UUID           `json:"member_id"`
	Principal           string              `json:"principal"`
	Currency            string              `json:"currency"`
	MonthlyInterestRate string              `json:"monthly_interest_rate"`
	InterestMethod      string              `json:"interest_method"`
	State               string              `json:"state"`
	DisbursedAt         time.Time           `json:"disbursed_at"`
	DueDate             time.Time           `json:"due_date"`
	RepaidAmount        string              `json:"repaid_amount"`
	AccruedInterest     string              `json:"accrued_interest"`
	Outstanding         string              `json:"outstanding"`
	Repayments          []RepaymentResponse `json:"repayments"`
	ClosedAt            *time.Time          `json:"closed_at,omitempty"`
	Version             int                 `json:"version"`
}

// SweepResult summarizes one pass of the overdue sweep
type SweepResult struct {
	Scanned       int         `json:"scanned"`
	MarkedOverdue []uuid.UUID `json:"marked_overdue"`
	Defaulted     []uuid.UUID `json:"defaulted"`
}

// RebuildResult summarizes a loan book rebuild for one group
type RebuildResult struct {
	GroupID      uuid.UUID `json:"group_id"`
	LoansRebuilt int       `json:"loans_rebuilt"`
}

// ToLoanResponse converts a loan aggregate to its API representation
func ToLoanResponse(l *loan.Loan, asOf time.Time) LoanResponse {
	repayments := make([]RepaymentResponse, 0, len(l.Repayments))
	for _, r := range l.Repayments {
		repayments = append(repayments, RepaymentResponse{
			TransactionID: r.TransactionID,
			Amount:        r.Amount,
			PaidAt:        r.PaidAt,
		})
	}
	return LoanResponse{
		ID:                  l.ID,
		GroupID:             l.GroupID,
		MemberID:            l.MemberID,
		Principal:           l.Principal.StringFixed(2),
		Currency:            string(l.Principal.Currency()),
		MonthlyInterestRate: l.MonthlyInterestRate.String(),
		InterestMethod:      string(l.InterestMethod),
		State:               string(l.State),
		DisbursedAt:         l.DisbursedAt,
		DueDate:             l.DueDate,
		RepaidAmount:        l.RepaidAmount.StringFixed(2),
		AccruedInterest:     l.AccruedInterest(asOf).StringFixed(2),
		Outstanding:         l.Outstanding(asOf).StringFixed(2),
		Repayments:          repayments,
		ClosedAt:            l.ClosedAt,
		Version:             l.Version,
	}
}
