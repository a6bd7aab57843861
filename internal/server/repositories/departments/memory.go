package departments

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Department
	names  map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  map[int64]*models.Department{},
		names: map[string]int64{},
	}
}

func (r *MemoryRepository) Create(_ context.Context, d *models.Department) (*models.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[d.Name]; ok {
		return nil, &common.DuplicateFieldError{Field: "name"}
	}

	r.nextID++
	c := *d
	c.ID = r.nextID
	r.byID[c.ID] = &c
	r.names[c.Name] = c.ID

	d.ID = c.ID
	return &c, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*models.Department, error) {
	d, ok := r.Lookup(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

// Lookup is a users.DepartmentLookup.
func (r *MemoryRepository) Lookup(id int64) (*models.Department, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	c := *d
	return &c, true
}

func (r *MemoryRepository) List(_ context.Context) ([]*models.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Department, 0, len(r.byID))
	for _, d := range r.byID {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
