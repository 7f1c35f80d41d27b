package session

import (
	"context"
	"errors"
	"sync"
)

// Keys used in the durable store
const (
	KeySessionID = "sessionId"
	KeyControlID = "controlId"
)

// ErrNotFound is returned by a Store when the key has never been written
var ErrNotFound = errors.New("key not found")

// Store is the durable key-value store the identity is persisted in
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values for the lifetime of the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}
