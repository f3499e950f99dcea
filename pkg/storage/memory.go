package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. Values are kept JSON-encoded so that
// callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string][]byte),
	}
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, namespace, key string, out interface{}) (bool, error) {
	if err := validateName("namespace", namespace); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	raw, ok := s.data[namespace][key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// Put implements Store
func (s *MemoryStore) Put(ctx context.Context, namespace, key string, value interface{}) error {
	if err := validateName("namespace", namespace); err != nil {
		return err
	}
	if err := validateName("key", key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", namespace, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = data

	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.data[namespace], key)
	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.data, namespace)
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
