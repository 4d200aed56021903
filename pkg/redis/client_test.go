package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestIsNilError(t *testing.T) {
	if !IsNilError(redis.Nil) {
		t.Error("redis.Nil should be a nil error")
	}
	if !IsNilError(fmt.Errorf("get: %w", redis.Nil)) {
		t.Error("wrapped redis.Nil should be a nil error")
	}
	if IsNilError(fmt.Errorf("connection refused")) {
		t.Error("other errors are not nil errors")
	}
}

func TestClientRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	// More keys than one SCAN page, so the flush spans several DEL batches.
	const keys = 3*flushPageSize + 7
	for i := 0; i < keys; i++ {
		if err := c.Set(ctx, fmt.Sprintf("test:%d", i), "1", time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Set(ctx, "other:a", "1", time.Minute); err != nil {
		t.Fatal(err)
	}
	defer c.FlushByPattern(ctx, "other:*")
	if v, err := c.Get(ctx, "test:0"); err != nil || v != "1" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	n, err := c.FlushByPattern(ctx, "test:*")
	if err != nil || n != keys {
		t.Fatalf("FlushByPattern = %d, %v", n, err)
	}
	if _, err := c.Get(ctx, "test:0"); !IsNilError(err) {
		t.Errorf("expected nil error after flush, got %v", err)
	}
	if v, err := c.Get(ctx, "other:a"); err != nil || v != "1" {
		t.Errorf("keys outside the pattern must survive, got %q, %v", v, err)
	}
}
