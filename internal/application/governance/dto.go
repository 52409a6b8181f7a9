package governance

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/governance"
)

// AssignOfficerRequest represents a request to rotate an officer role
type AssignOfficerRequest struct {
	MemberID uuid.UUID `json:"member_id" binding:"required"`
	Role     string    `json:"role" binding:"required,oneof=chair treasurer secretary"`
}

// AssignmentResponse represents one officer tenure
type AssignmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   uuid.UUID  `json:"group_id"`
	MemberID  uuid.UUID  `json:"member_id"`
	Role      string     `json:"role"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// RosterResponse maps each officer role to its current holder. Vacant
// roles are omitted.
type RosterResponse struct {
	GroupID uuid.UUID            `json:"group_id"`
	Roster  map[string]uuid.UUID `json:"roster"`
}

// ToAssignmentResponse converts an assignment to its API representation
func ToAssignmentResponse(a *governance.OfficerAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        a.ID,
		GroupID:   a.GroupID,
		MemberID:  a.MemberID,
		Role:      string(a.Role),
		StartDate: a.StartDate,
		EndDate:   a.EndDate,
	}
}

// ToRosterResponse converts open assignments to the roster view
func ToRosterResponse(groupID uuid.UUID, open []governance.OfficerAssignment) *RosterResponse {
	roster := governance.ActiveRoster(open)
	out := make(map[string]uuid.UUID, len(roster))
	for role, memberID := range roster {
		out[string(role)] = memberID
	}
	return &RosterResponse{GroupID: groupID, Roster: out}
}
