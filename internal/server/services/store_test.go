package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreErr(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"nil", nil, false},
		{"plain", boom, false},
		{"not found", common.ErrorNotFound, false},
		{"deadline", fmt.Errorf("db error: %w", context.DeadlineExceeded), true},
		{"net", &net.OpError{Op: "dial", Err: boom}, true},
		{"already mapped", common.ErrStoreUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storeErr(tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(got, common.ErrStoreUnavailable))
			if tt.err == nil {
				assert.NoError(t, got)
			}
		})
	}
}

func TestCallStore_BoundsSlowCalls(t *testing.T) {
	start := time.Now()
	_, err := callStore(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

// stallingRegistry never answers before the caller's deadline.
type stallingRegistry struct {
	*revocations.MemoryRegistry
}

func (s stallingRegistry) RevokeOnce(ctx context.Context, _ string, _ time.Time) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (s stallingRegistry) Revoke(ctx context.Context, _ string, _ time.Time) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSession_StoreUnavailable(t *testing.T) {
	f := newFixtureWithRegistry(t, stallingRegistry{revocations.NewMemoryRegistry()})
	f.svc.timeout = 20 * time.Millisecond

	f.register(t, "alice", "alice@example.com")
	sess := f.login(t, "alice")

	_, err := f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)

	err = f.svc.Logout(context.Background(), sess.RefreshToken)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

// stallingUsers blocks GetByID until the deadline while stalls is positive,
// decrementing it on each stalled call.
type stallingUsers struct {
	users.Repository
	stalls *atomic.Int32
}

func (s stallingUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.stalls.Add(-1) >= 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Repository.GetByID(ctx, id)
}

type stallingUsersManager struct {
	*repomanager.InMemoryRepositoryManager
	stalls *atomic.Int32
}

func (m stallingUsersManager) Users(db dbx.DBTX) users.Repository {
	return stallingUsers{Repository: m.InMemoryRepositoryManager.Users(db), stalls: m.stalls}
}

func TestRefresh_StoreOutageKeepsTokenUsable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	sess := f.login(t, "alice")

	stalls := &atomic.Int32{}
	stalls.Store(1)
	f.svc.creds.repos = stallingUsersManager{InMemoryRepositoryManager: f.repos, stalls: stalls}
	f.svc.creds.timeout = 20 * time.Millisecond

	_, err := f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)

	old, err := f.issuer.Inspect(sess.RefreshToken, auth.TokenTypeRefresh)
	require.NoError(t, err)
	revoked, err := f.registry.IsRevoked(context.Background(), old.ID)
	require.NoError(t, err)
	assert.False(t, revoked, "a failed refresh must not consume the token")

	next, err := f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)

	_, err = f.svc.Refresh(context.Background(), sess.RefreshToken)
	require.ErrorIs(t, err, common.ErrTokenRevoked)
}
