package group

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/group"
)

// CreateGroupRequest represents a request to create a savings group
type CreateGroupRequest struct {
	Name        string     `json:"name" binding:"required"`
	CohortID    *uuid.UUID `json:"cohort_id"`
	SeedCapital string     `json:"seed_capital"`
	Currency    string     `json:"currency"`
}

// RenameGroupRequest represents a request to rename a group
type RenameGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// RegisterMemberRequest represents a request to register a member
type RegisterMemberRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// GroupListFilter represents filter options for the group list
type GroupListFilter struct {
	Status   string     `form:"status" binding:"omitempty,oneof=active dissolved"`
	CohortID *uuid.UUID `form:"cohort_id"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// GroupResponse represents a savings group in API responses
type GroupResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	CohortID    *uuid.UUID `json:"cohort_id,omitempty"`
	SeedCapital string     `json:"seed_capital"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	ID       uuid.UUID  `json:"id"`
	GroupID  uuid.UUID  `json:"group_id"`
	Name     string     `json:"name"`
	Phone    string     `json:"phone,omitempty"`
	Role     string     `json:"role"`
	Status   string     `json:"status"`
	JoinedAt time.Time  `json:"joined_at"`
	ExitedAt *time.Time `json:"exited_at,omitempty"`
}

// ToGroupResponse converts a group aggregate to its API representation
func ToGroupResponse(g *group.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		CohortID:    g.CohortID,
		SeedCapital: g.SeedCapital.StringFixed(2),
		Currency:    string(g.SeedCapital.Currency()),
		Status:      string(g.Status),
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// ToMemberResponse converts a member entity to its API representation
func ToMemberResponse(m *group.Member) MemberResponse {
	return MemberResponse{
		ID:       m.ID,
		GroupID:  m.GroupID,
		Name:     m.Name,
		Phone:    m.Phone,
		Role:     string(m.Role),
		Status:   string(m.Status),
		JoinedAt: m.JoinedAt,
		ExitedAt: m.ExitedAt,
	}
}
