package group

import (
	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// Event types for the group domain
const (
	EventTypeGroupCreated     = "group.created"
	EventTypeMemberRegistered = "group.member.registered"
	EventTypeMemberExited     = "group.member.exited"
)

// GroupCreatedEvent is raised when a new savings group is created
type GroupCreatedEvent struct {
	shared.BaseDomainEvent
	Name        string `json:"name"`
	SeedCapital string `json:"seed_capital"`
}

// NewGroupCreatedEvent creates a group created event
func NewGroupCreatedEvent(g *Group) *GroupCreatedEvent {
	return &GroupCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGroupCreated, "Group", g.ID, g.ID),
		Name:            g.Name,
		SeedCapital:     g.SeedCapital.StringFixed(2),
	}
}

// MemberRegisteredEvent is raised when a member joins a group
type MemberRegisteredEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID `json:"member_id"`
	Name     string    `json:"name"`
}

// NewMemberRegisteredEvent creates a member registered event
func NewMemberRegisteredEvent(m *Member) *MemberRegisteredEvent {
	return &MemberRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMemberRegistered, "Member", m.ID, m.GroupID),
		MemberID:        m.ID,
		Name:            m.Name,
	}
}

// MemberExitedEvent is raised when a member leaves a group
type MemberExitedEvent struct {
	shared.BaseDomainEvent
	MemberID uuid.UUID `json:"member_id"`
}

// NewMemberExitedEvent creates a member exited event
func NewMemberExitedEvent(m *Member) *MemberExitedEvent {
	return &MemberExitedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMemberExited, "Member", m.ID, m.GroupID),
		MemberID:        m.ID,
	}
}
