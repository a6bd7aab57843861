package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/departments"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

// InMemoryRepositoryManager shares one set of in-process repositories. The
// db argument of the factories is ignored; WithTx serialises callers.
type InMemoryRepositoryManager struct {
	txMu        sync.Mutex
	users       *users.MemoryRepository
	departments *departments.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	d := departments.NewMemoryRepository()
	return &InMemoryRepositoryManager{
		users:       users.NewMemoryRepository(d.Lookup),
		departments: d,
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) DB() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *InMemoryRepositoryManager) Departments(dbx.DBTX) departments.Repository {
	return m.departments
}

// WithTx gives fn exclusive use of the manager. There is no rollback.
func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}
