package group

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// Repository provides access to savings groups
type Repository interface {
	Create(ctx context.Context, g *Group) error
	FindByID(ctx context.Context, id uuid.UUID) (*Group, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Group, int64, error)
	// Save persists mutable fields (name, status, version).
	// Seed capital is never written back.
	Save(ctx context.Context, g *Group) error
}

// MemberRepository provides access to group members
type MemberRepository interface {
	Create(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]Member, error)
	Save(ctx context.Context, m *Member) error
}
