package departments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Department) (*models.Department, error) {
	query :=
		`INSERT INTO departments (name, description)
		 VALUES ($1, $2)
		 RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, d.Name, d.Description).Scan(&d.ID); err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, &common.DuplicateFieldError{Field: "name"}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return d, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Department, error) {
	query := `SELECT id, name, description FROM departments WHERE id = $1`

	d := &models.Department{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &d.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return d, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Department, error) {
	query := `SELECT id, name, description FROM departments ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Department
	for rows.Next() {
		d := &models.Department{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}
