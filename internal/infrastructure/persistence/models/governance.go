package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/shared"
)

// OfficerAssignmentModel is the persistence model for officer tenure
// intervals. An open assignment has a NULL end_date; the partial unique
// index on (group_id, role) WHERE end_date IS NULL keeps at most one
// holder per role per group.
type OfficerAssignmentModel struct {
	BaseModel
	GroupID   uuid.UUID              `gorm:"type:uuid;not null;index"`
	MemberID  uuid.UUID              `gorm:"type:uuid;not null;index"`
	Role      governance.OfficerRole `gorm:"type:varchar(20);not null"`
	StartDate time.Time              `gorm:"not null"`
	EndDate   *time.Time             `gorm:"index"`
}

// TableName returns the table name for GORM
func (OfficerAssignmentModel) TableName() string {
	return "officer_assignments"
}

// ToDomain converts the persistence model to a domain OfficerAssignment
func (m *OfficerAssignmentModel) ToDomain() *governance.OfficerAssignment {
	return &governance.OfficerAssignment{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		GroupID:   m.GroupID,
		MemberID:  m.MemberID,
		Role:      m.Role,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
	}
}

// FromDomain populates the persistence model from a domain OfficerAssignment
func (m *OfficerAssignmentModel) FromDomain(a *governance.OfficerAssignment) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.GroupID = a.GroupID
	m.MemberID = a.MemberID
	m.Role = a.Role
	m.StartDate = a.StartDate
	m.EndDate = a.EndDate
}

// OfficerAssignmentModelFromDomain creates a new persistence model from a domain OfficerAssignment
func OfficerAssignmentModelFromDomain(a *governance.OfficerAssignment) *OfficerAssignmentModel {
	m := &OfficerAssignmentModel{}
	m.FromDomain(a)
	return m
}
