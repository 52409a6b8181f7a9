package loan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// LoanState represents the lifecycle state of a loan
type LoanState string

const (
	StateDisbursed       LoanState = "disbursed"
	StatePartiallyRepaid LoanState = "partially_repaid"
	StateRepaid          LoanState = "repaid"
	StateOverdue         LoanState = "overdue"
	StateDefaulted       LoanState = "defaulted"
)

// IsTerminal returns true for closed states. Terminal loans never reopen.
func (s LoanState) IsTerminal() bool {
	return s == StateRepaid || s == StateDefaulted
}

// CanApplyRepayment returns true if the state accepts repayments
func (s LoanState) CanApplyRepayment() bool {
	switch s {
	case StateDisbursed, StatePartiallyRepaid, StateOverdue:
		return true
	}
	return false
}

// InterestMethod selects how interest accrues
type InterestMethod string

const (
	// InterestSimple accrues principal * rate * elapsedDays/30 on the
	// original principal, non-compounding.
	InterestSimple InterestMethod = "simple"
	// InterestFlat fixes interest at disbursement:
	// principal * rate * term months.
	InterestFlat InterestMethod = "flat"
)

// IsValid checks if the method is a known value
func (m InterestMethod) IsValid() bool {
	return m == InterestSimple || m == InterestFlat
}

// RepaymentRecord is one repayment applied to a loan
type RepaymentRecord struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// RepaymentRecords is stored as JSONB alongside the loan row
type RepaymentRecords []RepaymentRecord

// Value implements driver.Valuer for JSONB storage
func (r RepaymentRecords) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB retrieval
func (r *RepaymentRecords) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RepaymentRecords", value)
	}
	return json.Unmarshal(data, r)
}

// Loan is a derived aggregate keyed by its disbursement transaction. The
// loan table is a cache: the aggregate is always recomputable by replaying
// the group's transaction log.
type Loan struct {
	shared.GroupAggregateRoot
	MemberID            uuid.UUID
	Principal           valueobject.Money
	MonthlyInterestRate decimal.Decimal
	InterestMethod      InterestMethod
	DisbursedAt         time.Time
	DueDate             time.Time
	Repayments          RepaymentRecords
	RepaidAmount        valueobject.Money
	State               LoanState
	ClosedAt            *time.Time
}

// NewLoanFromDisbursement builds the loan aggregate for a committed
// loan_disbursement transaction. The loan ID is the transaction ID.
func NewLoanFromDisbursement(tx *ledger.Transaction, terms ledger.LoanTerms, method InterestMethod) (*Loan, error) {
	if tx.Kind != ledger.KindLoanDisbursement {
		return nil, shared.ErrInvalidInput.WithDetails("transaction %s is not a disbursement", tx.ID)
	}
	if tx.MemberID == nil {
		return nil, shared.ErrInvalidInput.WithDetails("disbursement has no member")
	}
	if !method.IsValid() {
		method = InterestSimple
	}

	root := shared.NewGroupAggregateRoot(tx.GroupID)
	root.ID = tx.ID
	root.CreatedAt = tx.CreatedAt
	root.UpdatedAt = tx.CreatedAt

	l := &Loan{
		GroupAggregateRoot:  root,
		MemberID:            *tx.MemberID,
		Principal:           tx.Amount,
		MonthlyInterestRate: terms.MonthlyInterestRate,
		InterestMethod:      method,
		DisbursedAt:         tx.CreatedAt,
		DueDate:             terms.DueDate,
		Repayments:          RepaymentRecords{},
		RepaidAmount:        valueobject.Zero(tx.Amount.Currency()),
		State:               StateDisbursed,
	}
	l.AddDomainEvent(NewLoanDisbursedEvent(l))
	return l, nil
}

// AccruedInterest computes interest as of the given time. Accrual stops at
// closure. Simple interest runs on the original principal by elapsed
// days/30; flat interest is fixed by the loan term.
func (l *Loan) AccruedInterest(asOf time.Time) valueobject.Money {
	end := asOf
	if l.ClosedAt != nil && l.ClosedAt.Before(end) {
		end = *l.ClosedAt
	}
	if end.Before(l.DisbursedAt) {
		return valueobject.Zero(l.Principal.Currency())
	}

	var months decimal.Decimal
	switch l.InterestMethod {
	case InterestFlat:
		termDays := decimal.NewFromFloat(l.DueDate.Sub(l.DisbursedAt).Hours() / 24)
		months = termDays.Div(decimal.NewFromInt(30)).Ceil()
	default:
		elapsedDays := decimal.NewFromInt(int64(end.Sub(l.DisbursedAt).Hours() / 24))
		months = elapsedDays.Div(decimal.NewFromInt(30))
	}

	interest := l.Principal.Multiply(l.MonthlyInterestRate.Mul(months))
	return interest.Round(valueobject.MaxScale)
}

// Outstanding returns principal plus accrued interest minus repayments,
// floored at zero. Repayments retire accrued interest before principal,
// which this total-based formula encodes.
func (l *Loan) Outstanding(asOf time.Time) valueobject.Money {
	total := l.Principal.MustAdd(l.AccruedInterest(asOf))
	outstanding := total.MustSubtract(l.RepaidAmount)
	if outstanding.IsNegative() {
		return valueobject.Zero(l.Principal.Currency())
	}
	return outstanding
}

// ApplyRepayment applies a committed loan_repayment transaction. Closing
// is terminal: repayments against a closed loan are rejected and the final
// instalment may exceed the outstanding balance.
func (l *Loan) ApplyRepayment(tx *ledger.Transaction) error {
	if tx.Kind != ledger.KindLoanRepayment {
		return shared.ErrInvalidInput.WithDetails("transaction %s is not a repayment", tx.ID)
	}
	if l.State.IsTerminal() || !l.State.CanApplyRepayment() {
		return shared.ErrLoanAlreadyClosed.WithDetails("loan %s is %s", l.ID, l.State)
	}

	repaid, err := l.RepaidAmount.Add(tx.Amount)
	if err != nil {
		return err
	}
	l.RepaidAmount = repaid
	l.Repayments = append(l.Repayments, RepaymentRecord{
		TransactionID: tx.ID,
		Amount:        tx.Amount.StringFixed(valueobject.MaxScale),
		PaidAt:        tx.CreatedAt,
	})

	if !l.Outstanding(tx.CreatedAt).IsPositive() {
		closedAt := tx.CreatedAt
		l.ClosedAt = &closedAt
		l.State = StateRepaid
		l.AddDomainEvent(NewLoanRepaidEvent(l))
	} else if l.State == StateDisbursed {
		l.State = StatePartiallyRepaid
	}

	l.AddDomainEvent(NewRepaymentAppliedEvent(l, tx))
	l.IncrementVersion()
	l.UpdatedAt = tx.CreatedAt
	return nil
}

// IsOverdue reports whether the loan is past due with a balance owing
func (l *Loan) IsOverdue(asOf time.Time) bool {
	if l.State.IsTerminal() {
		return false
	}
	return asOf.After(l.DueDate) && l.Outstanding(asOf).IsPositive()
}

// MarkOverdue transitions an open loan past its due date to overdue
func (l *Loan) MarkOverdue(asOf time.Time) error {
	if l.State != StateDisbursed && l.State != StatePartiallyRepaid {
		return shared.ErrInvalidState.WithDetails("loan %s is %s", l.ID, l.State)
	}
	if !l.IsOverdue(asOf) {
		return shared.ErrInvalidState.WithDetails("loan %s is not past due", l.ID)
	}
	l.State = StateOverdue
	l.AddDomainEvent(NewLoanOverdueEvent(l))
	l.IncrementVersion()
	return nil
}

// MarkDefaulted transitions an overdue loan past the grace period to
// defaulted, a terminal state.
func (l *Loan) MarkDefaulted(asOf time.Time, graceDays int) error {
	if l.State != StateOverdue {
		return shared.ErrInvalidState.WithDetails("only overdue loans default, loan %s is %s", l.ID, l.State)
	}
	deadline := l.DueDate.AddDate(0, 0, graceDays)
	if !asOf.After(deadline) {
		return shared.ErrInvalidState.WithDetails("grace period for loan %s has not elapsed", l.ID)
	}
	if !l.Outstanding(asOf).IsPositive() {
		return shared.ErrInvalidState.WithDetails("loan %s has no outstanding balance", l.ID)
	}
	closedAt := asOf
	l.ClosedAt = &closedAt
	l.State = StateDefaulted
	l.AddDomainEvent(NewLoanDefaultedEvent(l))
	l.IncrementVersion()
	return nil
}

// RepaidOnTime reports whether the loan closed fully repaid on or before
// its due date. Feeds the repayment rate metric.
func (l *Loan) RepaidOnTime() bool {
	return l.State == StateRepaid && l.ClosedAt != nil && !l.ClosedAt.After(l.DueDate)
}

// DueBy reports whether the loan's due date has passed as of the given time
func (l *Loan) DueBy(asOf time.Time) bool {
	return !l.DueDate.After(asOf)
}
