package machineid

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Incrementer is the slice of the Redis API the allocator needs. A
// *redis.Client satisfies it.
type Incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisAllocator hands out machine ids from a shared counter: each
// allocation is INCR modulo 65536. Ids repeat after 65536 allocations, so
// this suits fleets that allocate once per process start, not per request.
type RedisAllocator struct {
	client  Incrementer
	key     string
	timeout time.Duration
}

// NewRedisAllocator builds an allocator over an already-connected client.
// The caller owns the client's lifecycle.
func NewRedisAllocator(client Incrementer, key string) *RedisAllocator {
	if key == "" {
		key = "mintid:machine-id"
	}
	return &RedisAllocator{client: client, key: key, timeout: 5 * time.Second}
}

// Allocate claims the next counter value.
func (a *RedisAllocator) Allocate(ctx context.Context) (uint16, error) {
	n, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("machineid: redis incr %s: %w", a.key, err)
	}
	// INCR starts at 1; shift so the first allocation gets id 0.
	return uint16((n - 1) & 0xFFFF), nil
}

// Provider adapts Allocate for the flake builder, bounding the call with
// the allocator's timeout.
func (a *RedisAllocator) Provider() Provider {
	return func() (uint16, error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		return a.Allocate(ctx)
	}
}
