package progression

import (
	"context"

	"github.com/brightpath/stagegate/model"
)

// Store persists participant progress and requirement completions.
// UpdateProgress uses optimistic locking: the stored version must match the
// given record's version or the update fails with CONFLICT. Storage failures
// surface as UNAVAILABLE errors, never as empty results.
type Store interface {
	// CreateProgress persists a new progress record.
	CreateProgress(ctx context.Context, progress model.ParticipantProgress) error

	// GetProgress retrieves a progress record by ID. Returns NOT_FOUND when
	// it does not exist.
	GetProgress(ctx context.Context, progressID string) (model.ParticipantProgress, error)

	// GetActiveByParticipant retrieves the participant's active progress.
	// Returns NOT_FOUND when the participant has none.
	GetActiveByParticipant(ctx context.Context, participantID string) (model.ParticipantProgress, error)

	// UpdateProgress persists changes to a progress record, checking the
	// record's version against the stored one and incrementing it on
	// success. Returns CONFLICT on a version mismatch.
	UpdateProgress(ctx context.Context, progress model.ParticipantProgress) error

	// ListActive returns every progress record with status "active".
	ListActive(ctx context.Context) ([]model.ParticipantProgress, error)

	// AddCompletion records a requirement completion. At most one completion
	// exists per (progress, requirement) pair; re-adding is a no-op. The
	// boolean reports whether a new completion was inserted.
	AddCompletion(ctx context.Context, completion model.RequirementCompletion) (bool, error)

	// CompletionsByProgress returns every completion recorded for a
	// progress record.
	CompletionsByProgress(ctx context.Context, progressID string) ([]model.RequirementCompletion, error)
}
