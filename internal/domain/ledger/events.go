package ledger

import (
	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// Event types for the ledger domain
const (
	EventTypeTransactionRecorded = "ledger.transaction.recorded"
)

// TransactionRecordedEvent is raised after a transaction commits. Handlers
// run off the write path: projection cache invalidation and statement
// notifications subscribe to it.
type TransactionRecordedEvent struct {
	shared.BaseDomainEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	Sequence      int64           `json:"sequence"`
	Kind          TransactionKind `json:"kind"`
	MemberID      *uuid.UUID      `json:"member_id,omitempty"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
}

// NewTransactionRecordedEvent creates a transaction recorded event
func NewTransactionRecordedEvent(tx *Transaction) *TransactionRecordedEvent {
	return &TransactionRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionRecorded, "Transaction", tx.ID, tx.GroupID),
		TransactionID:   tx.ID,
		Sequence:        tx.Sequence,
		Kind:            tx.Kind,
		MemberID:        tx.MemberID,
		Amount:          tx.Amount.StringFixed(2),
		Currency:        string(tx.Amount.Currency()),
	}
}
