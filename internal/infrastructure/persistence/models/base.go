package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// PopulateAggregateRoot populates a domain BaseAggregateRoot from persistence model
func (m *AggregateModel) PopulateAggregateRoot(a *shared.BaseAggregateRoot) {
	a.BaseEntity.ID = m.ID
	a.BaseEntity.CreatedAt = m.CreatedAt
	a.BaseEntity.UpdatedAt = m.UpdatedAt
	a.Version = m.Version
}

// GroupAggregateModel provides common persistence fields for group-scoped
// aggregate roots. It extends AggregateModel with group ID and creator info.
type GroupAggregateModel struct {
	AggregateModel
	GroupID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
}

// FromDomainGroupAggregateRoot populates GroupAggregateModel from domain GroupAggregateRoot
func (m *GroupAggregateModel) FromDomainGroupAggregateRoot(g shared.GroupAggregateRoot) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.GroupID = g.GroupID
	m.CreatedBy = g.CreatedBy
}

// PopulateGroupAggregateRoot populates a domain GroupAggregateRoot from persistence model
func (m *GroupAggregateModel) PopulateGroupAggregateRoot(g *shared.GroupAggregateRoot) {
	m.PopulateAggregateRoot(&g.BaseAggregateRoot)
	g.GroupID = m.GroupID
	g.CreatedBy = m.CreatedBy
}

// moneyFrom rebuilds a Money value object from its stored columns.
// Currency defaults when the column predates multi-currency support.
func moneyFrom(amount decimal.Decimal, currency string) valueobject.Money {
	cur := valueobject.Currency(currency)
	if cur == "" {
		cur = valueobject.DefaultCurrency
	}
	m, _ := valueobject.NewMoney(amount, cur)
	return m
}
