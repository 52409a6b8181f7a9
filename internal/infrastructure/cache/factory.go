package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/infrastructure/config"
)

// Factory creates projection caches and idempotency stores based on
// configuration. Both backends share one Redis client when the redis
// driver is selected.
type Factory struct {
	cacheConfig           config.CacheConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	client *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		cacheConfig:           cacheCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// redisClient lazily connects and pings the configured Redis instance.
// The client is shared by every store the factory creates.
func (f *Factory) redisClient() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	f.client = client
	return client, nil
}

// CreateProjectionCache creates a balance sheet cache based on the
// configured driver. With the redis driver it falls back to in-memory
// when Redis is unreachable and fallback is allowed.
func (f *Factory) CreateProjectionCache() (ledger.ProjectionCache, error) {
	if f.cacheConfig.Driver != "redis" {
		return NewMemoryProjectionCache(), nil
	}

	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis projection cache",
			zap.Duration("ttl", f.cacheConfig.ProjectionTTL))
		return NewRedisProjectionCache(client, f.cacheConfig.ProjectionTTL), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for projection cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory projection cache. "+
		"Cached balance sheets will not be shared across instances.",
		zap.Error(err),
	)
	return NewMemoryProjectionCache(), nil
}

// CreateIdempotencyStore creates an event dedupe store based on the
// configured driver. In-memory stores do not share state across process
// instances, which can lead to duplicate statement deliveries in
// distributed deployments.
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	if f.cacheConfig.Driver != "redis" {
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"This may cause duplicate event processing in distributed deployments.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// Close releases the shared Redis client, if one was created
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	client := f.client
	f.client = nil
	return client.Close()
}
