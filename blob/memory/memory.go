// Package memory provides an in-memory blob store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/workfleet/fulfill/blob"
)

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ blob.Store = (*Store)(nil)

// New builds an empty store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores a copy of data under bucket/key.
func (s *Store) Put(_ context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[objectKey(bucket, key)] = cp
	return nil
}

// Get returns a copy of the object at bucket/key.
func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}
