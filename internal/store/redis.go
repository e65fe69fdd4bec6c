package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// TokenBlacklist stores invalidated tokens in Redis until they would have
// expired anyway. Keys carry a TTL so the set cleans itself up.
type TokenBlacklist struct {
	rdb *redis.Client
}

func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb}
}

// Add marks a token invalid for the given remaining lifetime.
func (b *TokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to store
	}
	return b.rdb.Set(ctx, "blacklist:"+token, "1", ttl).Err()
}

// Contains reports whether a token has been invalidated.
func (b *TokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	_, err := b.rdb.Get(ctx, "blacklist:"+token).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
