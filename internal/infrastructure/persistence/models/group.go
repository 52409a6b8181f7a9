package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
)

// GroupModel is the persistence model for the Group aggregate root.
// SeedCapitalAmount is written once at creation and never updated.
type GroupModel struct {
	AggregateModel
	Name              string            `gorm:"type:varchar(200);not null"`
	CohortID          *uuid.UUID        `gorm:"type:uuid;index"`
	SeedCapitalAmount decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	Currency          string            `gorm:"type:varchar(3);not null;default:'UGX'"`
	Status            group.GroupStatus `gorm:"type:varchar(20);not null;default:'active';index"`
}

// TableName returns the table name for GORM
func (GroupModel) TableName() string {
	return "groups"
}

// ToDomain converts the persistence model to a domain Group
func (m *GroupModel) ToDomain() *group.Group {
	g := &group.Group{
		Name:        m.Name,
		CohortID:    m.CohortID,
		SeedCapital: moneyFrom(m.SeedCapitalAmount, m.Currency),
		Status:      m.Status,
	}
	m.PopulateAggregateRoot(&g.BaseAggregateRoot)
	return g
}

// FromDomain populates the persistence model from a domain Group
func (m *GroupModel) FromDomain(g *group.Group) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.Name = g.Name
	m.CohortID = g.CohortID
	m.SeedCapitalAmount = g.SeedCapital.Amount()
	m.Currency = string(g.SeedCapital.Currency())
	m.Status = g.Status
}

// GroupModelFromDomain creates a new persistence model from a domain Group
func GroupModelFromDomain(g *group.Group) *GroupModel {
	m := &GroupModel{}
	m.FromDomain(g)
	return m
}

// MemberModel is the persistence model for group members
type MemberModel struct {
	BaseModel
	GroupID  uuid.UUID          `gorm:"type:uuid;not null;index"`
	Name     string             `gorm:"type:varchar(200);not null"`
	Phone    string             `gorm:"type:varchar(30)"`
	Role     group.MemberRole   `gorm:"type:varchar(20);not null;default:'regular'"`
	Status   group.MemberStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	JoinedAt time.Time          `gorm:"not null"`
	ExitedAt *time.Time
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToDomain converts the persistence model to a domain Member
func (m *MemberModel) ToDomain() *group.Member {
	return &group.Member{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		GroupID:  m.GroupID,
		Name:     m.Name,
		Phone:    m.Phone,
		Role:     m.Role,
		Status:   m.Status,
		JoinedAt: m.JoinedAt,
		ExitedAt: m.ExitedAt,
	}
}

// FromDomain populates the persistence model from a domain Member
func (m *MemberModel) FromDomain(mem *group.Member) {
	m.FromDomainBaseEntity(mem.BaseEntity)
	m.GroupID = mem.GroupID
	m.Name = mem.Name
	m.Phone = mem.Phone
	m.Role = mem.Role
	m.Status = mem.Status
	m.JoinedAt = mem.JoinedAt
	m.ExitedAt = mem.ExitedAt
}

// MemberModelFromDomain creates a new persistence model from a domain Member
func MemberModelFromDomain(mem *group.Member) *MemberModel {
	m := &MemberModel{}
	m.FromDomain(mem)
	return m
}
