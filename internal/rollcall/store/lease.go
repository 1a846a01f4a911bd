package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "presente/pkg/domain"
)

// RedisLease serializes session transitions per group across replicas with a
// short-lived SET NX lock. The database compare-and-set remains the source
// of truth; the lease just keeps racing replicas from hammering it.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLease constructs a lease manager. A zero ttl defaults to 10s,
// comfortably longer than any transition but short enough that a crashed
// holder cannot wedge the group.
func NewRedisLease(client *redis.Client, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLease{client: client, ttl: ttl}
}

func leaseKey(groupID id.GroupID) string {
	return "presente:session-lease:" + groupID.String()
}

// Acquire claims the per-group lease. Returns false when another transition
// holds it.
func (l *RedisLease) Acquire(ctx context.Context, groupID id.GroupID) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKey(groupID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire session lease: %w", err)
	}
	return ok, nil
}

// Release frees the lease. Best-effort: an expired key is not an error.
func (l *RedisLease) Release(ctx context.Context, groupID id.GroupID) error {
	if err := l.client.Del(ctx, leaseKey(groupID)).Err(); err != nil {
		return fmt.Errorf("release session lease: %w", err)
	}
	return nil
}
