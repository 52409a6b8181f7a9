package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vsla/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore deduplicates event deliveries within a single
// process. Expired entries are reaped lazily on write, so no background
// goroutine is needed.
type InMemoryIdempotencyStore struct {
	mu      sync.RWMutex
	expires map[string]time.Time
}

// NewInMemoryIdempotencyStore creates an empty in-memory store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		expires: make(map[string]time.Time),
	}
}

// MarkProcessed marks an event as processed with a TTL.
// Returns true if the event was newly marked.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.expires[eventID]; ok && now.Before(deadline) {
		return false, nil
	}
	for id, deadline := range s.expires {
		if now.After(deadline) {
			delete(s.expires, id)
		}
	}
	s.expires[eventID] = now.Add(ttl)
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline, ok := s.expires[eventID]
	return ok && time.Now().Before(deadline), nil
}

// Close implements IdempotencyStore; nothing to release
func (s *InMemoryIdempotencyStore) Close() error {
	return nil
}

// Size returns the number of tracked events (for tests)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expires)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
