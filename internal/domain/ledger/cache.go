package ledger

import (
	"context"

	"github.com/google/uuid"
)

// ProjectionCache stores balance sheets keyed by group and log length.
// Because the projector is deterministic, the committed sequence number is
// a complete validity key: a cached sheet at sequence N is correct until
// transaction N+1 commits. Losing the cache is harmless; the projector
// rebuilds by full replay.
type ProjectionCache interface {
	// Get returns the cached sheet if it matches the given sequence
	Get(ctx context.Context, groupID uuid.UUID, sequence int64) (*BalanceSheet, bool, error)

	// Put stores the sheet under its own sequence
	Put(ctx context.Context, sheet *BalanceSheet) error

	// Invalidate drops the cached sheet for a group
	Invalidate(ctx context.Context, groupID uuid.UUID) error

	// Close releases cache resources
	Close() error
}
