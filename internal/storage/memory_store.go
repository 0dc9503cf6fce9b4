package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record)}
}

// Get returns the record for key
func (s *MemoryStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Data: append([]byte(nil), rec.Data...), Revision: rec.Revision}, true, nil
}

// Set stores rec when it is newer than the stored record
func (s *MemoryStore) Set(ctx context.Context, key Key, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[key]; ok && cur.Revision >= rec.Revision {
		return nil
	}
	s.records[key] = Record{Data: append([]byte(nil), rec.Data...), Revision: rec.Revision}
	return nil
}

// Delete removes the record for key
func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
