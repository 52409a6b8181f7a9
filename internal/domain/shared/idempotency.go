package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed event IDs so notification handlers
// can drop duplicate deliveries. Entries expire after their TTL.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it had
	// already been processed within the TTL window.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close releases the store's resources
	Close() error
}
