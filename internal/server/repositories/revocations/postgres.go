package revocations

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
)

// PostgresRegistry stores revocations in the revoked_tokens table. The
// primary key on jti makes RevokeOnce an atomic claim.
type PostgresRegistry struct {
	db dbx.DBTX
}

func NewPostgresRegistry(db dbx.DBTX) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.RevokeOnce(ctx, jti, expiresAt)
	return err
}

func (r *PostgresRegistry) RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	query := `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, jti, expiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`

	var revoked bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

func (r *PostgresRegistry) Purge(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
