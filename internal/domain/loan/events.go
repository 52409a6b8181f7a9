package loan

import (
	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/shared"
)

// Event types for the loan domain
const (
	EventTypeLoanDisbursed    = "loan.disbursed"
	EventTypeRepaymentApplied = "loan.repayment.applied"
	EventTypeLoanRepaid       = "loan.repaid"
	EventTypeLoanOverdue      = "loan.overdue"
	EventTypeLoanDefaulted    = "loan.defaulted"
)

// LoanDisbursedEvent is raised when a disbursement creates a loan
type LoanDisbursedEvent struct {
	shared.BaseDomainEvent
	MemberID  uuid.UUID `json:"member_id"`
	Principal string    `json:"principal"`
	DueDate   string    `json:"due_date"`
}

// NewLoanDisbursedEvent creates a loan disbursed event
func NewLoanDisbursedEvent(l *Loan) *LoanDisbursedEvent {
	return &LoanDisbursedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanDisbursed, "Loan", l.ID, l.GroupID),
		MemberID:        l.MemberID,
		Principal:       l.Principal.StringFixed(2),
		DueDate:         l.DueDate.Format("2006-01-02"),
	}
}

// RepaymentAppliedEvent is raised for every repayment applied to a loan
type RepaymentAppliedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	State         LoanState `json:"state"`
}

// NewRepaymentAppliedEvent creates a repayment applied event
func NewRepaymentAppliedEvent(l *Loan, tx *ledger.Transaction) *RepaymentAppliedEvent {
	return &RepaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRepaymentApplied, "Loan", l.ID, l.GroupID),
		TransactionID:   tx.ID,
		Amount:          tx.Amount.StringFixed(2),
		State:           l.State,
	}
}

// LoanRepaidEvent is raised when a loan closes fully repaid
type LoanRepaidEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID `json:"member_id"`
}

// NewLoanRepaidEvent creates a loan repaid event
func NewLoanRepaidEvent(l *Loan) *LoanRepaidEvent {
	return &LoanRepaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanRepaid, "Loan", l.ID, l.GroupID),
		MemberID:        l.MemberID,
	}
}

// LoanOverdueEvent is raised when a loan passes its due date unpaid
type LoanOverdueEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID `json:"member_id"`
}

// NewLoanOverdueEvent creates a loan overdue event
func NewLoanOverdueEvent(l *Loan) *LoanOverdueEvent {
	return &LoanOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanOverdue, "Loan", l.ID, l.GroupID),
		MemberID:        l.MemberID,
	}
}

// LoanDefaultedEvent is raised when an overdue loan defaults after grace
type LoanDefaultedEvent struct {
	shared.BaseDomainEvent
	MemberID    uuid.UUID `json:"member_id"`
	Outstanding string    `json:"outstanding"`
}

// NewLoanDefaultedEvent creates a loan defaulted event
func NewLoanDefaultedEvent(l *Loan) *LoanDefaultedEvent {
	return &LoanDefaultedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoanDefaulted, "Loan", l.ID, l.GroupID),
		MemberID:        l.MemberID,
		Outstanding:     l.Principal.MustAdd(l.AccruedInterest(*l.ClosedAt)).MustSubtract(l.RepaidAmount).StringFixed(2),
	}
}
