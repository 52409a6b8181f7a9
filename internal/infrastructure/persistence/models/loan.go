package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/loan"
)

// LoanModel is the persistence model for the Loan aggregate root.
// The primary key is the disbursement transaction ID.
type LoanModel struct {
	GroupAggregateModel
	MemberID            uuid.UUID            `gorm:"type:uuid;not null;index"`
	PrincipalAmount     decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Currency            string               `gorm:"type:varchar(3);not null;default:'UGX'"`
	MonthlyInterestRate decimal.Decimal      `gorm:"type:decimal(8,4);not null"`
	InterestMethod      loan.InterestMethod  `gorm:"type:varchar(20);not null;default:'simple'"`
	DisbursedAt         time.Time            `gorm:"not null"`
	DueDate             time.Time            `gorm:"not null;index"`
	Repayments          loan.RepaymentRecords `gorm:"type:jsonb;default:'[]'"`
	RepaidAmount        decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	State               loan.LoanState       `gorm:"type:varchar(20);not null;index"`
	ClosedAt            *time.Time
}

// TableName returns the table name for GORM
func (LoanModel) TableName() string {
	return "loans"
}

// ToDomain converts the persistence model to a domain Loan
func (m *LoanModel) ToDomain() *loan.Loan {
	l := &loan.Loan{
		MemberID:            m.MemberID,
		Principal:           moneyFrom(m.PrincipalAmount, m.Currency),
		MonthlyInterestRate: m.MonthlyInterestRate,
		InterestMethod:      m.InterestMethod,
		DisbursedAt:         m.DisbursedAt,
		DueDate:             m.DueDate,
		Repayments:          m.Repayments,
		RepaidAmount:        moneyFrom(m.RepaidAmount, m.Currency),
		State:               m.State,
		ClosedAt:            m.ClosedAt,
	}
	m.PopulateGroupAggregateRoot(&l.GroupAggregateRoot)
	return l
}

// FromDomain populates the persistence model from a domain Loan
func (m *LoanModel) FromDomain(l *loan.Loan) {
	m.FromDomainGroupAggregateRoot(l.GroupAggregateRoot)
	m.MemberID = l.MemberID
	m.PrincipalAmount = l.Principal.Amount()
	m.Currency = string(l.Principal.Currency())
	m.MonthlyInterestRate = l.MonthlyInterestRate
	m.InterestMethod = l.InterestMethod
	m.DisbursedAt = l.DisbursedAt
	m.DueDate = l.DueDate
	m.Repayments = l.Repayments
	m.RepaidAmount = l.RepaidAmount.Amount()
	m.State = l.State
	m.ClosedAt = l.ClosedAt
}

// LoanModelFromDomain creates a new persistence model from a domain Loan
func LoanModelFromDomain(l *loan.Loan) *LoanModel {
	m := &LoanModel{}
	m.FromDomain(l)
	return m
}
