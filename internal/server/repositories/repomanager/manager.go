// Package repomanager vends repository implementations for one storage
// backend and runs work in a transaction on it.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/departments"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// DB is the non-transactional handle; nil for in-memory storage.
	DB() dbx.DBTX
	Users(db dbx.DBTX) users.Repository
	Departments(db dbx.DBTX) departments.Repository
	// WithTx runs fn in a transaction; fn's tx is passed to the factories.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
}
