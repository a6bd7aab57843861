// Package departments persists the departments users belong to.
package departments

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

type Repository interface {
	// Create returns *common.DuplicateFieldError{Field: "name"} on a name
	// collision.
	Create(ctx context.Context, d *models.Department) (*models.Department, error)
	GetByID(ctx context.Context, id int64) (*models.Department, error)
	// List returns all departments ordered by name.
	List(ctx context.Context) ([]*models.Department, error)
}
