package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const principalKeyPrefix = "principal:"

// RedisPrincipalCache keeps resolved principals for a short TTL so repeated
// requests with the same token skip the user lookup. Entries are evicted when
// the account is deleted.
type RedisPrincipalCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisPrincipalCache(client *redis.Client, ttl time.Duration) *RedisPrincipalCache {
	return &RedisPrincipalCache{Client: client, TTL: ttl}
}

func (c *RedisPrincipalCache) Get(ctx context.Context, email string) (*Principal, error) {
	raw, err := c.Client.Get(ctx, principalKeyPrefix+email).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal from Redis: %w", err)
	}

	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached principal: %w", err)
	}
	return &p, nil
}

func (c *RedisPrincipalCache) Set(ctx context.Context, p *Principal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}
	if err := c.Client.Set(ctx, principalKeyPrefix+p.Email, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache principal: %w", err)
	}
	return nil
}

func (c *RedisPrincipalCache) Evict(ctx context.Context, email string) error {
	return c.Client.Del(ctx, principalKeyPrefix+email).Err()
}
