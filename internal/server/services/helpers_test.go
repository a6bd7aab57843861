package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/password"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/staffkeeper/internal/server/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret"
	alicePass    = "Str0ng-Passw0rd!"
	testTimeout  = time.Second
	accessTTL    = 15 * time.Minute
	refreshTTL   = 7 * 24 * time.Hour
	baseUnixTime = 1772355600 // 2026-03-01T09:00:00Z
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      *UserService
	depts    *DepartmentService
	repos    *repomanager.InMemoryRepositoryManager
	registry revocations.Registry
	avatars  *storage.MemoryStore
	issuer   *auth.Issuer
	hasher   password.Hasher
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRegistry(t, revocations.NewMemoryRegistry())
}

func newFixtureWithRegistry(t *testing.T, registry revocations.Registry) *fixture {
	t.Helper()

	clock := &testClock{t: time.Unix(baseUnixTime, 0).UTC()}
	repos := repomanager.NewInMemoryRepositoryManager()
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	issuer := auth.NewIssuer(testSecret, accessTTL, refreshTTL, registry, auth.WithClock(clock.Now))
	avatars := storage.NewMemoryStore()

	svc := NewUserService(UserServiceDeps{
		Repos:        repos,
		Hasher:       hasher,
		Issuer:       issuer,
		Revocations:  registry,
		Avatars:      avatars,
		Logger:       nopLogger{},
		StoreTimeout: testTimeout,
		Now:          clock.Now,
	})

	return &fixture{
		svc:      svc,
		depts:    NewDepartmentService(repos, svc.creds, nopLogger{}, testTimeout),
		repos:    repos,
		registry: registry,
		avatars:  avatars,
		issuer:   issuer,
		hasher:   hasher,
		clock:    clock,
	}
}

func registerInput(username, email string) RegisterInput {
	return RegisterInput{
		Username:        username,
		Email:           email,
		Gender:          "F",
		Password:        alicePass,
		PasswordConfirm: alicePass,
	}
}

func (f *fixture) register(t *testing.T, username, email string) *UserView {
	t.Helper()
	v, err := f.svc.Register(context.Background(), registerInput(username, email))
	require.NoError(t, err)
	return v
}

// seedUser stores a user directly, bypassing registration rules.
func (f *fixture) seedUser(t *testing.T, username string, staff, active bool) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(alicePass)
	require.NoError(t, err)

	u, err := f.repos.Users(nil).Create(context.Background(), &models.User{
		Username:     username,
		Email:        strings.ToLower(username) + "@example.com",
		PasswordHash: hash,
		Gender:       models.GenderUnknown,
		IsActive:     active,
		IsStaff:      staff,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) department(t *testing.T, name string) *models.Department {
	t.Helper()
	d, err := f.repos.Departments(nil).Create(context.Background(), &models.Department{Name: name})
	require.NoError(t, err)
	return d
}

func (f *fixture) login(t *testing.T, username string) *Session {
	t.Helper()
	sess, err := f.svc.Login(context.Background(), username, alicePass)
	require.NoError(t, err)
	return sess
}
