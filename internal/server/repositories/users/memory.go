package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/google/uuid"
)

// DepartmentLookup resolves a department id for reads.
type DepartmentLookup func(id int64) (*models.Department, bool)

// MemoryRepository keeps users in process memory. Username and email
// uniqueness is checked under the same lock as the insert.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byUsername map[string]string
	byEmail    map[string]string
	dept       DepartmentLookup
	now        func() time.Time
}

func NewMemoryRepository(dept DepartmentLookup) *MemoryRepository {
	return &MemoryRepository{
		byID:       map[string]*models.User{},
		byUsername: map[string]string{},
		byEmail:    map[string]string{},
		dept:       dept,
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return nil, &common.DuplicateFieldError{Field: "username"}
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, &common.DuplicateFieldError{Field: "email"}
	}

	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.WorkStatus == "" {
		u.WorkStatus = models.WorkStatusActive
	}
	u.DateJoined = r.now().UTC()
	u.Department = nil

	r.byID[u.ID] = &u
	r.byUsername[u.Username] = u.ID
	r.byEmail[u.Email] = u.ID

	*user = u
	return r.view(&u), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.view(u), nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.view(r.byID[id]), nil
}

func (r *MemoryRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch *models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	patch.Apply(u)
	return r.view(u), nil
}

// view returns a copy with the department joined. Callers hold the lock.
func (r *MemoryRepository) view(u *models.User) *models.User {
	c := *u
	c.Department = nil
	if c.DepartmentID != nil && r.dept != nil {
		if d, ok := r.dept(*c.DepartmentID); ok {
			c.Department = d
		}
	}
	return &c
}
