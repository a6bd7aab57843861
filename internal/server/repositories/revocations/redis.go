package revocations

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "staffkeeper:revoked:"

// RedisRegistry keeps one key per revoked jti with a TTL ending at the
// token's expiry, so Redis purges records by itself.
type RedisRegistry struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

func (r *RedisRegistry) key(jti string) string { return redisKeyPrefix + jti }

// ttl never drops below a second; an expired token is rejected before the
// registry is asked anyway.
func (r *RedisRegistry) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(r.now())
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := r.client.Set(ctx, r.key(jti), 1, r.ttl(expiresAt)).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRegistry) RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(jti), 1, r.ttl(expiresAt)).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return ok, nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// Purge is a no-op: keys expire on their own.
func (r *RedisRegistry) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
