package revocations

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client), mr
}

// registries runs the shared contract against every backend that needs no
// database.
func registries(t *testing.T) map[string]Registry {
	r, _ := newRedisRegistry(t)
	return map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  r,
	}
}

func TestRegistry_RevokeIsIdempotent(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := time.Now().Add(time.Hour)

			revoked, err := reg.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, reg.Revoke(ctx, "jti-1", exp))
			require.NoError(t, reg.Revoke(ctx, "jti-1", exp))

			revoked, err = reg.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = reg.IsRevoked(ctx, "jti-2")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}

func TestRegistry_RevokeOnceSingleWinner(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			exp := time.Now().Add(time.Hour)

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := reg.RevokeOnce(context.Background(), "shared", exp)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())

			ok, err := reg.RevokeOnce(context.Background(), "shared", exp)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryRegistry_Purge(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, reg.Revoke(ctx, "old", now.Add(-time.Minute)))
	require.NoError(t, reg.Revoke(ctx, "new", now.Add(time.Minute)))

	n, err := reg.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, _ := reg.IsRevoked(ctx, "old")
	assert.False(t, revoked)
	revoked, _ = reg.IsRevoked(ctx, "new")
	assert.True(t, revoked)
}

func TestRedisRegistry_TTLFollowsExpiry(t *testing.T) {
	reg, mr := newRedisRegistry(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, reg.Revoke(ctx, "a", now.Add(2*time.Hour)))
	assert.Equal(t, 2*time.Hour, mr.TTL(redisKeyPrefix+"a"))

	ok, err := reg.RevokeOnce(ctx, "stale", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Second, mr.TTL(redisKeyPrefix+"stale"))

	mr.FastForward(2*time.Hour + time.Second)

	revoked, err := reg.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	n, err := reg.Purge(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisRegistry_Unavailable(t *testing.T) {
	reg, mr := newRedisRegistry(t)
	mr.Close()

	ctx := context.Background()
	_, err := reg.IsRevoked(ctx, "x")
	require.Error(t, err)
	_, err = reg.RevokeOnce(ctx, "x", time.Now().Add(time.Hour))
	require.Error(t, err)
	require.Error(t, reg.Revoke(ctx, "x", time.Now().Add(time.Hour)))
}
