package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

func testCacheConfig(typ string) domain.CacheConfig {
	return domain.CacheConfig{Type: typ, LocalMaxSize: 16}
}

func TestLRUCacheSetGet(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(val) != "v1" {
		t.Errorf("got %q, want %q", val, "v1")
	}
}

func TestLRUCacheMissIsNil(t *testing.T) {
	c := NewLRUCache(10)

	val, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil for missing key, got %q", val)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Set(ctx, "ephemeral", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	val, err := c.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != nil {
		t.Errorf("expected expired entry to be gone, got %q", val)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := c.Set(ctx, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("stats = (%d, %d), want (3, 3)", size, capacity)
	}

	// Oldest entries were evicted.
	for _, key := range []string{"k0", "k1"} {
		if val, _ := c.Get(ctx, key); val != nil {
			t.Errorf("expected %s evicted, got %q", key, val)
		}
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if val, _ := c.Get(ctx, key); val == nil {
			t.Errorf("expected %s present", key)
		}
	}
}

func TestLRUCacheUpdateMovesToFront(t *testing.T) {
	c := NewLRUCache(2)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	// Touch "a" so "b" becomes the eviction candidate.
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Set(ctx, "c", []byte("3"), time.Minute)

	if val, _ := c.Get(ctx, "b"); val != nil {
		t.Errorf("expected b evicted, got %q", val)
	}
	if val, _ := c.Get(ctx, "a"); string(val) != "1" {
		t.Errorf("expected a retained, got %q", val)
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if val, _ := c.Get(ctx, "k"); val != nil {
		t.Errorf("expected deleted key gone, got %q", val)
	}

	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	c, err := New(testCacheConfig(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("expected *LRUCache, got %T", c)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(testCacheConfig("memcached")); err == nil {
		t.Error("expected error for unknown cache type")
	}
}
