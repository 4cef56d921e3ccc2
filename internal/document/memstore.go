package document

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brightpath/stagegate/model"
)

// MemoryStore is an in-memory document Store for testing and small
// deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]model.Document)}
}

// CreateDocument persists a new document.
func (s *MemoryStore) CreateDocument(_ context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("document %q already exists", doc.ID))
	}
	s.docs[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *MemoryStore) GetDocument(_ context.Context, documentID string) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return model.Document{}, model.NewNotFoundError(
			fmt.Sprintf("document %q not found", documentID),
		)
	}
	return doc, nil
}

// ApplyDecision persists a decided document if the stored one is still
// pending.
func (s *MemoryStore) ApplyDecision(_ context.Context, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.ID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("document %q not found", doc.ID))
	}
	if existing.Decided() {
		return model.NewAlreadyDecidedError(doc.ID, existing.Status)
	}
	s.docs[doc.ID] = doc
	return nil
}

// ListByParticipant returns the participant's documents, oldest first.
func (s *MemoryStore) ListByParticipant(_ context.Context, participantID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Document
	for _, doc := range s.docs {
		if doc.ParticipantID == participantID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.Before(result[j].UploadedAt)
	})
	return result, nil
}
