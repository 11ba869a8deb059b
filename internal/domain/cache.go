package domain

import (
	"context"
	"time"
)

// Cache defines the interface for read-side caching. Only the analytics
// endpoints use it; the profile reader and velocity counter always read
// the repository fresh, so a stale cache can never influence a score.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key is not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
