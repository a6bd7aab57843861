package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/password"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
)

// CredentialStore owns user identities and password hashes. Every call is
// bounded by the store timeout.
type CredentialStore struct {
	repos   repomanager.RepositoryManager
	hasher  password.Hasher
	timeout time.Duration
}

func NewCredentialStore(repos repomanager.RepositoryManager, hasher password.Hasher, timeout time.Duration) *CredentialStore {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &CredentialStore{repos: repos, hasher: hasher, timeout: timeout}
}

// CreateUser hashes plain and persists u. Username and email uniqueness is
// enforced by the store, so concurrent duplicates fail with
// *common.DuplicateFieldError.
func (c *CredentialStore) CreateUser(ctx context.Context, u *models.User, plain string) (*models.User, error) {
	hash, err := c.hasher.Hash(plain)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	return callStore(ctx, c.timeout, func(ctx context.Context) (*models.User, error) {
		return c.repos.Users(c.repos.DB()).Create(ctx, u)
	})
}

// VerifyCredentials returns the user when plain matches. Unknown usernames
// and wrong passwords both yield common.ErrInvalidCredentials after the same
// amount of hashing work; inactive accounts yield common.ErrAccountDisabled.
func (c *CredentialStore) VerifyCredentials(ctx context.Context, username, plain string) (*models.User, error) {
	u, err := callStore(ctx, c.timeout, func(ctx context.Context) (*models.User, error) {
		return c.repos.Users(c.repos.DB()).GetByUsername(ctx, username)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.hasher.CompareDummy(plain)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !c.hasher.Compare(u.PasswordHash, plain) {
		return nil, common.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, common.ErrAccountDisabled
	}
	return u, nil
}

func (c *CredentialStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return callStore(ctx, c.timeout, func(ctx context.Context) (*models.User, error) {
		return c.repos.Users(c.repos.DB()).GetByID(ctx, id)
	})
}

// UpdateFields applies patch, which by construction only carries
// allow-listed fields.
func (c *CredentialStore) UpdateFields(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error) {
	return callStore(ctx, c.timeout, func(ctx context.Context) (*models.User, error) {
		return c.repos.Users(c.repos.DB()).Update(ctx, id, patch)
	})
}

func (c *CredentialStore) usernameTaken(ctx context.Context, username string) (bool, error) {
	return callStore(ctx, c.timeout, func(ctx context.Context) (bool, error) {
		return c.repos.Users(c.repos.DB()).ExistsByUsername(ctx, username)
	})
}

func (c *CredentialStore) emailTaken(ctx context.Context, email string) (bool, error) {
	return callStore(ctx, c.timeout, func(ctx context.Context) (bool, error) {
		return c.repos.Users(c.repos.DB()).ExistsByEmail(ctx, email)
	})
}

func (c *CredentialStore) department(ctx context.Context, id int64) (*models.Department, error) {
	return callStore(ctx, c.timeout, func(ctx context.Context) (*models.Department, error) {
		return c.repos.Departments(c.repos.DB()).GetByID(ctx, id)
	})
}

// staff returns the actor when it exists and holds the staff flag.
func (c *CredentialStore) staff(ctx context.Context, actorID string) (*models.User, error) {
	actor, err := c.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}
	if !actor.IsStaff || !actor.IsActive {
		return nil, common.ErrForbidden
	}
	return actor, nil
}
