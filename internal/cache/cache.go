package cache

import (
	"fmt"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// New creates a cache based on configuration: an in-process LRU for
// single-node deployments, Redis when analytics results should be shared
// across nodes.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
