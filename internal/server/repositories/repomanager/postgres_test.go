package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/departments"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ RepositoryManager = m
	assert.Equal(t, db, m.DB())
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	var _ users.Repository = m.Users(db)
	var _ departments.Repository = m.Departments(db)

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &departments.PostgresRepository{}, m.Departments(db))
}

func TestWithTx_CommitsAndRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		assert.NotNil(t, tx)
		return nil
	}))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error { return boom })
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestInMemoryRepositoryManager_SharesState(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	ctx := context.Background()

	require.NoError(t, m.RunMigrations(ctx))
	assert.Nil(t, m.DB())

	err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		d, err := m.Departments(tx).Create(ctx, &models.Department{Name: "Ops"})
		if err != nil {
			return err
		}
		_, err = m.Users(tx).Create(ctx, &models.User{Username: "alice", Email: "a@x.com", DepartmentID: &d.ID})
		return err
	})
	require.NoError(t, err)

	u, err := m.Users(nil).GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u.Department)
	assert.Equal(t, "Ops", u.Department.Name)
}
