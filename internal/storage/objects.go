package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrObjectNotFound is returned by object stores for a missing key.
var ErrObjectNotFound = eris.New("object not found")

// Objects stores raw upload bytes by key. s3storage.Storage is the
// production implementation.
type Objects interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryObjects keeps objects in a map.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Objects = (*MemoryObjects)(nil)

// NewMemoryObjects constructs an empty object store.
func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string][]byte)}
}

// Put stores a copy of data under key.
func (m *MemoryObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the object.
func (m *MemoryObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, eris.Wrapf(ErrObjectNotFound, "storage: object %s", key)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists stored keys in order.
func (m *MemoryObjects) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
