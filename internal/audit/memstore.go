package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/brightpath/stagegate/model"
)

// MemoryStore is an in-memory audit Store for testing and small deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds an entry to the trail.
func (s *MemoryStore) Append(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// ListByRecord retrieves all entries for a record, oldest first.
func (s *MemoryStore) ListByRecord(_ context.Context, tableName, recordID string) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.AuditEntry
	for _, e := range s.entries {
		if e.TableName == tableName && e.RecordID == recordID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Len returns the total number of entries. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns a copy of every entry in insertion order. For testing.
func (s *MemoryStore) All() []model.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.AuditEntry, len(s.entries))
	copy(result, s.entries)
	return result
}
