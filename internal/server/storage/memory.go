package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a blob held by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an AvatarStore for tests and storage-less runs. URLs use
// the memory:// scheme.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Object{}}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.ReadSeeker, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: data, ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns the stored object, for assertions.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
