package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationList stores revoked session tokens with a TTL matching the
// token's remaining lifetime.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationList(client *redis.Client, prefix string) *RedisRevocationList {
	if prefix == "" {
		prefix = "revoked:session:"
	}
	return &RedisRevocationList{client: client, prefix: prefix}
}

// Revoke is the write side of the list. The gateway only reads it; the SSO
// service calls this on logout against the same Redis and key prefix.
func (l *RedisRevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	return l.client.Set(ctx, l.prefix+token, "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
