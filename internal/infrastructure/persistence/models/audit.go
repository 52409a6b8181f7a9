package models

import (
	"time"

	"github.com/vsla/backend/internal/domain/audit"
)

// AuditRecordModel is the persistence model for the AuditRecord aggregate root
type AuditRecordModel struct {
	GroupAggregateModel
	ChecklistState audit.ChecklistState `gorm:"type:varchar(20);not null;default:'not_started';index"`
	Checklist      []string             `gorm:"type:jsonb;serializer:json"`
	CompletedSteps audit.CompletedSteps `gorm:"type:jsonb;default:'[]'"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "audit_records"
}

// ToDomain converts the persistence model to a domain AuditRecord
func (m *AuditRecordModel) ToDomain() *audit.AuditRecord {
	r := &audit.AuditRecord{
		ChecklistState: m.ChecklistState,
		Checklist:      m.Checklist,
		CompletedSteps: m.CompletedSteps,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
	m.PopulateGroupAggregateRoot(&r.GroupAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain AuditRecord
func (m *AuditRecordModel) FromDomain(r *audit.AuditRecord) {
	m.FromDomainGroupAggregateRoot(r.GroupAggregateRoot)
	m.ChecklistState = r.ChecklistState
	m.Checklist = r.Checklist
	m.CompletedSteps = r.CompletedSteps
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
}

// AuditRecordModelFromDomain creates a new persistence model from a domain AuditRecord
func AuditRecordModelFromDomain(r *audit.AuditRecord) *AuditRecordModel {
	m := &AuditRecordModel{}
	m.FromDomain(r)
	return m
}
