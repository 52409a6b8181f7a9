package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
)

// TransactionRepository is the only write path into the ledger.
// Implementations must assign the next per-group sequence atomically and
// surface shared.ErrConcurrentModification when a concurrent append wins
// the same sequence slot.
type TransactionRepository interface {
	// Append commits the transaction at the next sequence for its group
	// and sets tx.Sequence on success.
	Append(ctx context.Context, tx *Transaction) error

	// FindByID loads a single transaction
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// ListByGroup returns the full log for a group ordered by sequence
	// ascending.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]Transaction, error)

	// ListByGroupPaged returns a page of the log, newest first, for
	// display purposes.
	ListByGroupPaged(ctx context.Context, groupID uuid.UUID, filter shared.Filter) ([]Transaction, int64, error)

	// MaxSequence returns the highest committed sequence for the group,
	// zero for an empty log.
	MaxSequence(ctx context.Context, groupID uuid.UUID) (int64, error)
}
