package store

import (
	"sort"
	"sync"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
)

// MemoryStore keeps the fallback store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	used     int64
	capacity int64
}

func NewMemoryStore(capacity int64) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string][]byte),
		capacity: capacity,
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used - int64(len(s.data[key])) + int64(len(value))
	if next > s.capacity {
		return appErrors.NewCapacityExceeded(s.used, s.capacity)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	s.used = next
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value, ok := s.data[key]; ok {
		s.used -= int64(len(value))
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Capacity() int64 { return s.capacity }

var _ KV = (*MemoryStore)(nil)
