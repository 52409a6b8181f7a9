package governance

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores officer assignment history. Rows are never deleted.
type Repository interface {
	// Rotate applies a rotation change atomically: closes the previous
	// assignment (when present) and inserts the new one in a single
	// database transaction.
	Rotate(ctx context.Context, change *RotationChange) error

	// FindOpenByGroup returns all open assignments for a group
	FindOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]OfficerAssignment, error)

	// History returns the full assignment history for a group, newest
	// first.
	History(ctx context.Context, groupID uuid.UUID) ([]OfficerAssignment, error)
}
