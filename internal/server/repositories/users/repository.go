// Package users holds the persistence contract and implementations for user
// accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound when no row
// matches; username and email collisions return *common.DuplicateFieldError.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Update applies only the fields present in patch and returns the
	// stored user.
	Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error)
}
