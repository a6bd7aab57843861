package revocations

import (
	"context"
	"sync"
	"time"
)

type MemoryRegistry struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{revoked: map[string]time.Time{}}
}

func (r *MemoryRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.RevokeOnce(ctx, jti, expiresAt)
	return err
}

func (r *MemoryRegistry) RevokeOnce(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.revoked[jti]; ok {
		return false, nil
	}
	r.revoked[jti] = expiresAt
	return true, nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.revoked[jti]
	return ok, nil
}

func (r *MemoryRegistry) Purge(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for jti, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, jti)
			n++
		}
	}
	return n, nil
}
