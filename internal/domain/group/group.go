package group

import (
	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// GroupStatus represents the lifecycle status of a savings group
type GroupStatus string

const (
	GroupStatusActive    GroupStatus = "active"
	GroupStatusDissolved GroupStatus = "dissolved"
)

// IsValid checks if the status is a known value
func (s GroupStatus) IsValid() bool {
	return s == GroupStatusActive || s == GroupStatusDissolved
}

// Group is a village savings and loan association. It owns the ledger and
// all group-scoped aggregates. SeedCapital is fixed at creation; the
// repository never updates that column.
type Group struct {
	shared.BaseAggregateRoot
	Name        string
	CohortID    *uuid.UUID
	SeedCapital valueobject.Money
	Status      GroupStatus
}

// NewGroup creates a new savings group with its immutable seed capital
func NewGroup(name string, cohortID *uuid.UUID, seedCapital valueobject.Money) (*Group, error) {
	if name == "" {
		return nil, shared.ErrInvalidInput.WithDetails("group name is required")
	}
	if seedCapital.IsNegative() {
		return nil, shared.ErrInvalidAmount.WithDetails("seed capital cannot be negative")
	}
	if !seedCapital.HasValidScale() {
		return nil, shared.ErrInvalidAmount.WithDetails("seed capital exceeds two decimal places")
	}

	g := &Group{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		CohortID:          cohortID,
		SeedCapital:       seedCapital,
		Status:            GroupStatusActive,
	}
	g.AddDomainEvent(NewGroupCreatedEvent(g))
	return g, nil
}

// IsActive returns true if the group accepts ledger writes
func (g *Group) IsActive() bool {
	return g.Status == GroupStatusActive
}

// Dissolve marks the group dissolved. The ledger remains readable but
// rejects further writes.
func (g *Group) Dissolve() error {
	if g.Status == GroupStatusDissolved {
		return shared.ErrInvalidState.WithDetails("group is already dissolved")
	}
	g.Status = GroupStatusDissolved
	g.IncrementVersion()
	return nil
}

// Rename updates the group display name
func (g *Group) Rename(name string) error {
	if name == "" {
		return shared.ErrInvalidInput.WithDetails("group name is required")
	}
	g.Name = name
	g.IncrementVersion()
	return nil
}
