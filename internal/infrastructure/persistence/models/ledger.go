package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/ledger"
)

// TransactionModel is the persistence model for ledger transactions.
// Rows are append-only: the repository never issues UPDATE or DELETE
// against this table. The unique (group_id, sequence) index is the
// storage-level guarantee behind the per-group total order.
type TransactionModel struct {
	ID            uuid.UUID              `gorm:"type:uuid;primary_key"`
	GroupID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_tx_group_sequence,priority:1"`
	Sequence      int64                  `gorm:"not null;uniqueIndex:idx_tx_group_sequence,priority:2"`
	MemberID      *uuid.UUID             `gorm:"type:uuid;index"`
	Kind          ledger.TransactionKind `gorm:"type:varchar(30);not null;index"`
	Amount        decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	Currency      string                 `gorm:"type:varchar(3);not null;default:'UGX'"`
	LoanReference *uuid.UUID             `gorm:"type:uuid;index"`
	Metadata      ledger.Metadata        `gorm:"type:jsonb;default:'{}'"`
	CreatedBy     uuid.UUID              `gorm:"type:uuid;not null"`
	CreatedAt     time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "ledger_transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *TransactionModel) ToDomain() *ledger.Transaction {
	return &ledger.Transaction{
		ID:            m.ID,
		GroupID:       m.GroupID,
		Sequence:      m.Sequence,
		MemberID:      m.MemberID,
		Kind:          m.Kind,
		Amount:        moneyFrom(m.Amount, m.Currency),
		LoanReference: m.LoanReference,
		Metadata:      m.Metadata,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Transaction
func (m *TransactionModel) FromDomain(tx *ledger.Transaction) {
	m.ID = tx.ID
	m.GroupID = tx.GroupID
	m.Sequence = tx.Sequence
	m.MemberID = tx.MemberID
	m.Kind = tx.Kind
	m.Amount = tx.Amount.Amount()
	m.Currency = string(tx.Amount.Currency())
	m.LoanReference = tx.LoanReference
	m.Metadata = tx.Metadata
	m.CreatedBy = tx.CreatedBy
	m.CreatedAt = tx.CreatedAt
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction
func TransactionModelFromDomain(tx *ledger.Transaction) *TransactionModel {
	m := &TransactionModel{}
	m.FromDomain(tx)
	return m
}
