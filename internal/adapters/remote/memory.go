package remote

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is an in-process Store. Failures can be injected for tests.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string]Object
	next     int
	fetchErr error
	writeErr error
	writes   int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

// FailFetch makes every Fetch return err until cleared with nil.
func (m *MemoryStore) FailFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// FailWrites makes every Create and Update return err until cleared with nil.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns the number of successful writes.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, id string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return Object{}, m.fetchErr
	}
	obj, ok := m.objects[id]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Content: append([]byte(nil), obj.Content...), Version: obj.Version}, nil
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, id string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}
	if _, ok := m.objects[id]; ok {
		return "", ErrVersionConflict
	}
	return m.putLocked(id, content), nil
}

// Update implements Store.
func (m *MemoryStore) Update(ctx context.Context, id string, content []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}
	obj, ok := m.objects[id]
	if !ok {
		return "", ErrNotFound
	}
	if obj.Version != expectedVersion {
		return "", ErrVersionConflict
	}
	return m.putLocked(id, content), nil
}

// Put writes content unconditionally, as another client would.
func (m *MemoryStore) Put(id string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(id, content)
}

func (m *MemoryStore) putLocked(id string, content []byte) string {
	m.next++
	version := "v" + strconv.Itoa(m.next)
	m.objects[id] = Object{Content: append([]byte(nil), content...), Version: version}
	m.writes++
	return version
}
