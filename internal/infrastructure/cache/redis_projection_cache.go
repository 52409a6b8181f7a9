package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vsla/backend/internal/domain/ledger"
)

const projectionKeyPrefix = "vsla:projection:"

// RedisProjectionCache shares projected balance sheets across instances.
// Entries carry a TTL as a safety net; correctness comes from the
// sequence check, not expiry.
type RedisProjectionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProjectionCache creates a projection cache on an existing client
func NewRedisProjectionCache(client *redis.Client, ttl time.Duration) *RedisProjectionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisProjectionCache{client: client, ttl: ttl}
}

func projectionKey(groupID uuid.UUID) string {
	return projectionKeyPrefix + groupID.String()
}

// Get returns the cached sheet when it matches the requested sequence
func (c *RedisProjectionCache) Get(ctx context.Context, groupID uuid.UUID, sequence int64) (*ledger.BalanceSheet, bool, error) {
	data, err := c.client.Get(ctx, projectionKey(groupID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read projection cache: %w", err)
	}

	var sheet ledger.BalanceSheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		// A corrupt entry is dropped, the projector rebuilds by replay
		_ = c.client.Del(ctx, projectionKey(groupID)).Err()
		return nil, false, nil
	}
	if sheet.Sequence != sequence {
		return nil, false, nil
	}
	return &sheet, true, nil
}

// Put stores the sheet for its group
func (c *RedisProjectionCache) Put(ctx context.Context, sheet *ledger.BalanceSheet) error {
	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("failed to encode projection: %w", err)
	}
	if err := c.client.Set(ctx, projectionKey(sheet.GroupID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write projection cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached sheet for a group
func (c *RedisProjectionCache) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	if err := c.client.Del(ctx, projectionKey(groupID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate projection cache: %w", err)
	}
	return nil
}

// Close implements ProjectionCache. The Redis client is shared and
// owned by the factory, so there is nothing to release here.
func (c *RedisProjectionCache) Close() error {
	return nil
}

// Ensure RedisProjectionCache implements ProjectionCache
var _ ledger.ProjectionCache = (*RedisProjectionCache)(nil)
