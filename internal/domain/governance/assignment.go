package governance

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
)

// OfficerRole is a governance post within a group
type OfficerRole string

const (
	RoleChair     OfficerRole = "chair"
	RoleTreasurer OfficerRole = "treasurer"
	RoleSecretary OfficerRole = "secretary"
)

// AllRoles lists every governance post a group carries
var AllRoles = []OfficerRole{RoleChair, RoleTreasurer, RoleSecretary}

// IsValid checks if the role is a known value
func (r OfficerRole) IsValid() bool {
	return r == RoleChair || r == RoleTreasurer || r == RoleSecretary
}

// OfficerAssignment is one tenure of a member in a role. History is
// append-only: assignments are closed by setting EndDate, never deleted,
// so "who held what role when" is always reconstructable.
type OfficerAssignment struct {
	shared.BaseEntity
	GroupID   uuid.UUID
	MemberID  uuid.UUID
	Role      OfficerRole
	StartDate time.Time
	EndDate   *time.Time
}

// NewOfficerAssignment opens a new assignment starting now
func NewOfficerAssignment(groupID, memberID uuid.UUID, role OfficerRole) (*OfficerAssignment, error) {
	if !role.IsValid() {
		return nil, shared.ErrInvalidInput.WithDetails("unknown officer role %q", role)
	}
	return &OfficerAssignment{
		BaseEntity: shared.NewBaseEntity(),
		GroupID:    groupID,
		MemberID:   memberID,
		Role:       role,
		StartDate:  time.Now(),
	}, nil
}

// IsOpen reports whether the assignment is the current one for its role
func (a *OfficerAssignment) IsOpen() bool {
	return a.EndDate == nil
}

// Close ends the assignment
func (a *OfficerAssignment) Close(at time.Time) {
	if a.EndDate == nil {
		a.EndDate = &at
	}
}

// RotationChange is the atomic unit of an officer rotation: the previous
// holder's assignment to close (may be nil) and the new one to open. The
// repository persists both in a single transaction.
type RotationChange struct {
	ToClose *OfficerAssignment
	New     *OfficerAssignment
}

// PlanRotation validates an assignment request against the group's open
// assignments and produces the change to apply. Enforces the
// single-active-assignment invariant per (group, role) and the dual-role
// policy.
func PlanRotation(m *group.Member, groupID uuid.UUID, role OfficerRole, open []OfficerAssignment, allowDualRoles bool) (*RotationChange, error) {
	if !role.IsValid() {
		return nil, shared.ErrInvalidInput.WithDetails("unknown officer role %q", role)
	}
	if m == nil || !m.BelongsTo(groupID) || !m.IsActive() {
		return nil, shared.ErrUnknownMember.WithDetails("member is not an active member of group %s", groupID)
	}

	var toClose *OfficerAssignment
	for i := range open {
		a := &open[i]
		if !a.IsOpen() {
			continue
		}
		if a.Role == role {
			if a.MemberID == m.ID {
				return nil, shared.ErrAlreadyExists.WithDetails("member already holds the %s role", role)
			}
			toClose = a
			continue
		}
		if a.MemberID == m.ID && !allowDualRoles {
			return nil, shared.ErrRoleConflict.WithDetails("member already holds the %s role", a.Role)
		}
	}

	next, err := NewOfficerAssignment(groupID, m.ID, role)
	if err != nil {
		return nil, err
	}
	return &RotationChange{ToClose: toClose, New: next}, nil
}

// ActiveRoster maps each role to its current holder
func ActiveRoster(open []OfficerAssignment) map[OfficerRole]uuid.UUID {
	roster := make(map[OfficerRole]uuid.UUID, len(AllRoles))
	for i := range open {
		if open[i].IsOpen() {
			roster[open[i].Role] = open[i].MemberID
		}
	}
	return roster
}
