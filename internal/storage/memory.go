package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStateStore is an in-process StateStore. Values are kept as
// marshalled JSON, which both enforces the JSON-round-trip contract and
// gives Get/Put copy semantics for free.
type MemoryStateStore struct {
	mu     sync.Mutex
	values map[string][]byte
	lists  map[string][]byte
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		values: make(map[string][]byte),
		lists:  make(map[string][]byte),
	}
}

// Get loads and deep-copies the value at key via a JSON round-trip.
func (s *MemoryStateStore) Get(key string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}

	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("decoding state at %s: %w", key, err)
	}
	return value, true, nil
}

// Put replaces the value at key, rejecting values that do not marshal to JSON.
func (s *MemoryStateStore) Put(key string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = data
	return nil
}

// AppendRecord appends one entry to the list at key.
func (s *MemoryStateStore) AppendRecord(key string, entry map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []map[string]any
	if data, ok := s.lists[key]; ok {
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decoding list at %s: %w", key, err)
		}
	}
	list = append(list, entry)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding list for %s: %w", key, err)
	}
	s.lists[key] = data
	return nil
}

// GetRecords loads the list at key; never-written keys yield an empty list.
func (s *MemoryStateStore) GetRecords(key string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.lists[key]
	if !ok {
		return nil, nil
	}

	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding list at %s: %w", key, err)
	}
	return list, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStateStore) Close() error {
	return nil
}
