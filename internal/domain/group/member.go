package group

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// MemberRole distinguishes regular members from those holding an officer post
type MemberRole string

const (
	MemberRoleRegular MemberRole = "regular"
	MemberRoleOfficer MemberRole = "officer"
)

// MemberStatus represents membership status within a group
type MemberStatus string

const (
	MemberStatusActive MemberStatus = "active"
	MemberStatusExited MemberStatus = "exited"
)

// Member belongs to exactly one group. Identity originates in the external
// member registry; this entity is the ledger's read model of it.
type Member struct {
	shared.BaseEntity
	GroupID  uuid.UUID
	Name     string
	Phone    string
	Role     MemberRole
	Status   MemberStatus
	JoinedAt time.Time
	ExitedAt *time.Time
}

// NewMember registers a member in a group
func NewMember(groupID uuid.UUID, name, phone string) (*Member, error) {
	if groupID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithDetails("group id is required")
	}
	if name == "" {
		return nil, shared.ErrInvalidInput.WithDetails("member name is required")
	}
	return &Member{
		BaseEntity: shared.NewBaseEntity(),
		GroupID:    groupID,
		Name:       name,
		Phone:      phone,
		Role:       MemberRoleRegular,
		Status:     MemberStatusActive,
		JoinedAt:   time.Now(),
	}, nil
}

// IsActive returns true if the member can transact
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// BelongsTo checks group membership
func (m *Member) BelongsTo(groupID uuid.UUID) bool {
	return m.GroupID == groupID
}

// Exit marks the member as having left the group
func (m *Member) Exit() error {
	if m.Status == MemberStatusExited {
		return shared.ErrInvalidState.WithDetails("member has already exited")
	}
	now := time.Now()
	m.Status = MemberStatusExited
	m.ExitedAt = &now
	return nil
}

// MarkOfficer flags the member as holding an officer post.
// Maintained by the officer rotation flow, not set directly.
func (m *Member) MarkOfficer() {
	m.Role = MemberRoleOfficer
}

// MarkRegular clears the officer flag
func (m *Member) MarkRegular() {
	m.Role = MemberRoleRegular
}
