package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:event:"

// Store is the shared ledger for multi-instance deployments. SET NX EX is
// the atomic check-and-mark; Redis owns eviction, so duplicates are detected
// across instances and process restarts.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a ledger backed by the given Redis client.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// CheckAndMark returns true when this call claimed the key.
func (s *Store) CheckAndMark(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}
