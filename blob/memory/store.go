// Package memory provides an in-process blob.Store for tests and
// single-node deployments that skip cloud object storage.
package memory

import (
	"context"
	"sync"

	"github.com/poiesic/expensit/blob"
)

type object struct {
	data        []byte
	contentType string
}

// Store keeps blobs in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

var _ blob.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

// Put stores a copy of data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.objects[key] = object{data: cp, contentType: contentType}
	s.mu.Unlock()
	return key, nil
}

// Get returns a copy of the stored blob.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	obj, ok := s.objects[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, obj.contentType, nil
}

// Delete removes a blob; unknown references are a no-op.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, ref)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored blobs. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
