package loan

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores the cached loan aggregates. The cache is rebuildable
// by full replay of the group's transaction log; DeleteByGroup exists for
// that repair path only, never for ordinary operation.
type Repository interface {
	Create(ctx context.Context, l *Loan) error
	// Save persists mutable state with an optimistic version check and
	// surfaces shared.ErrConcurrentModification on a stale write.
	Save(ctx context.Context, l *Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]Loan, error)
	// ListOpen returns loans in a non-terminal state across all groups,
	// feeding the overdue sweep.
	ListOpen(ctx context.Context) ([]Loan, error)
	DeleteByGroup(ctx context.Context, groupID uuid.UUID) error
}
