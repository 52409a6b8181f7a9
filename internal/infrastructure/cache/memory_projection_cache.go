package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/ledger"
)

// MemoryProjectionCache keeps the latest balance sheet per group in
// process memory. Suitable for single-instance deployments and tests.
type MemoryProjectionCache struct {
	mu     sync.RWMutex
	sheets map[uuid.UUID]*ledger.BalanceSheet
}

// NewMemoryProjectionCache creates an empty in-memory projection cache
func NewMemoryProjectionCache() *MemoryProjectionCache {
	return &MemoryProjectionCache{
		sheets: make(map[uuid.UUID]*ledger.BalanceSheet),
	}
}

// Get returns the cached sheet when it matches the requested sequence
func (c *MemoryProjectionCache) Get(ctx context.Context, groupID uuid.UUID, sequence int64) (*ledger.BalanceSheet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sheet, ok := c.sheets[groupID]
	if !ok || sheet.Sequence != sequence {
		return nil, false, nil
	}
	return sheet, true, nil
}

// Put stores the sheet for its group
func (c *MemoryProjectionCache) Put(ctx context.Context, sheet *ledger.BalanceSheet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sheets[sheet.GroupID] = sheet
	return nil
}

// Invalidate drops the cached sheet for a group
func (c *MemoryProjectionCache) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sheets, groupID)
	return nil
}

// Close implements ProjectionCache; nothing to release
func (c *MemoryProjectionCache) Close() error {
	return nil
}

// Ensure MemoryProjectionCache implements ProjectionCache
var _ ledger.ProjectionCache = (*MemoryProjectionCache)(nil)
