package progression

import (
	"context"
	"fmt"
	"sync"

	"github.com/brightpath/stagegate/model"
)

// MemoryStore is an in-memory progression Store for testing and small
// deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	progress    map[string]model.ParticipantProgress
	completions map[string][]model.RequirementCompletion // keyed by progress ID
}

// NewMemoryStore creates a new in-memory progression store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress:    make(map[string]model.ParticipantProgress),
		completions: make(map[string][]model.RequirementCompletion),
	}
}

// CreateProgress persists a new progress record.
func (s *MemoryStore) CreateProgress(_ context.Context, progress model.ParticipantProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.progress[progress.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("progress %q already exists", progress.ID))
	}
	s.progress[progress.ID] = progress
	return nil
}

// GetProgress retrieves a progress record by ID.
func (s *MemoryStore) GetProgress(_ context.Context, progressID string) (model.ParticipantProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[progressID]
	if !ok {
		return model.ParticipantProgress{}, model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", progressID),
		)
	}
	return p, nil
}

// GetActiveByParticipant retrieves the participant's active progress.
func (s *MemoryStore) GetActiveByParticipant(_ context.Context, participantID string) (model.ParticipantProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.progress {
		if p.ParticipantID == participantID && p.Status == model.ProgressStatusActive {
			return p, nil
		}
	}
	return model.ParticipantProgress{}, model.NewNotFoundError(
		fmt.Sprintf("no active progress for participant %q", participantID),
	)
}

// UpdateProgress persists changes with an optimistic version check.
func (s *MemoryStore) UpdateProgress(_ context.Context, progress model.ParticipantProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.progress[progress.ID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("progress %q not found", progress.ID))
	}
	if existing.Version != progress.Version {
		return model.NewConflictError(fmt.Sprintf(
			"progress %q version mismatch: have %d, want %d",
			progress.ID, progress.Version, existing.Version,
		))
	}
	progress.Version++
	s.progress[progress.ID] = progress
	return nil
}

// ListActive returns every progress record with status "active".
func (s *MemoryStore) ListActive(_ context.Context) ([]model.ParticipantProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ParticipantProgress
	for _, p := range s.progress {
		if p.Status == model.ProgressStatusActive {
			result = append(result, p)
		}
	}
	return result, nil
}

// AddCompletion records a requirement completion, idempotently per
// (progress, requirement) pair.
func (s *MemoryStore) AddCompletion(_ context.Context, completion model.RequirementCompletion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.completions[completion.ProgressID] {
		if c.RequirementID == completion.RequirementID {
			return false, nil
		}
	}
	s.completions[completion.ProgressID] = append(s.completions[completion.ProgressID], completion)
	return true, nil
}

// CompletionsByProgress returns every completion recorded for a progress
// record.
func (s *MemoryStore) CompletionsByProgress(_ context.Context, progressID string) ([]model.RequirementCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completions := s.completions[progressID]
	result := make([]model.RequirementCompletion, len(completions))
	copy(result, completions)
	return result, nil
}
