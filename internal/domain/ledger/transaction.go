package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// Metadata carries free-form context on a transaction (meeting number,
// receipt reference). Stored as JSONB.
type Metadata map[string]string

// Value implements driver.Valuer for JSONB storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB retrieval
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}
	return json.Unmarshal(data, m)
}

// LoanTerms are carried only by loan_disbursement intents
type LoanTerms struct {
	MonthlyInterestRate decimal.Decimal
	DueDate             time.Time
}

// Metadata keys under which disbursement terms are stamped onto the
// committed transaction. The loan book rebuilds from the log alone, so
// the terms must live in the log.
const (
	MetadataKeyInterestRate = "monthly_interest_rate"
	MetadataKeyDueDate      = "due_date"
)

// Intent is a request to append a transaction. The ledger store validates
// it and, on success, turns it into an immutable Transaction.
type Intent struct {
	Kind          TransactionKind
	MemberID      *uuid.UUID
	Amount        valueobject.Money
	LoanReference *uuid.UUID
	LoanTerms     *LoanTerms
	Metadata      Metadata
	CreatedBy     uuid.UUID
}

// Transaction is an immutable ledger fact. Records are append-only and
// never mutated or deleted; corrections are compensating transactions.
// Sequence is the total order within the group.
type Transaction struct {
	ID            uuid.UUID
	GroupID       uuid.UUID
	Sequence      int64
	MemberID      *uuid.UUID
	Kind          TransactionKind
	Amount        valueobject.Money
	LoanReference *uuid.UUID
	Metadata      Metadata
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

// NewTransaction validates an intent and produces an unsequenced
// transaction. The repository assigns Sequence atomically at append time.
func NewTransaction(groupID uuid.UUID, intent Intent) (*Transaction, error) {
	if groupID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithDetails("group id is required")
	}
	if !intent.Kind.IsValid() {
		return nil, shared.ErrInvalidInput.WithDetails("unknown transaction kind %q", intent.Kind)
	}
	if !intent.Amount.IsPositive() {
		return nil, shared.ErrInvalidAmount.WithDetails("amount must be greater than zero")
	}
	if !intent.Amount.HasValidScale() {
		return nil, shared.ErrInvalidAmount.WithDetails("amount carries more than %d decimal places", valueobject.MaxScale)
	}
	if intent.Kind.RequiresMember() && (intent.MemberID == nil || *intent.MemberID == uuid.Nil) {
		return nil, shared.ErrInvalidInput.WithDetails("%s requires a member", intent.Kind)
	}
	if intent.Kind.RequiresLoanReference() && (intent.LoanReference == nil || *intent.LoanReference == uuid.Nil) {
		return nil, shared.ErrNoSuchLoan.WithDetails("%s requires a loan reference", intent.Kind)
	}
	if intent.Kind.RequiresLoanTerms() {
		if intent.LoanTerms == nil {
			return nil, shared.ErrInvalidInput.WithDetails("%s requires due date and interest rate", intent.Kind)
		}
		if intent.LoanTerms.MonthlyInterestRate.IsNegative() {
			return nil, shared.ErrInvalidInput.WithDetails("interest rate cannot be negative")
		}
		if intent.LoanTerms.DueDate.IsZero() {
			return nil, shared.ErrInvalidInput.WithDetails("%s requires a due date", intent.Kind)
		}
	}

	metadata := intent.Metadata
	if intent.Kind.RequiresLoanTerms() {
		if metadata == nil {
			metadata = Metadata{}
		}
		metadata[MetadataKeyInterestRate] = intent.LoanTerms.MonthlyInterestRate.String()
		metadata[MetadataKeyDueDate] = intent.LoanTerms.DueDate.Format(time.RFC3339)
	}

	return &Transaction{
		ID:            uuid.New(),
		GroupID:       groupID,
		MemberID:      intent.MemberID,
		Kind:          intent.Kind,
		Amount:        intent.Amount,
		LoanReference: intent.LoanReference,
		Metadata:      metadata,
		CreatedBy:     intent.CreatedBy,
		CreatedAt:     time.Now(),
	}, nil
}

// WithSequence returns a copy carrying the committed sequence number
func (t *Transaction) WithSequence(seq int64) *Transaction {
	clone := *t
	clone.Sequence = seq
	return &clone
}

// IsSequenced reports whether the transaction has been committed to the log
func (t *Transaction) IsSequenced() bool {
	return t.Sequence > 0
}
