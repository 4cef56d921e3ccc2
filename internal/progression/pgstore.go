package progression

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath/stagegate/model"
)

// PgStore is a PostgreSQL-backed progression Store using pgx/v5. Optimistic
// locking relies on the version column: updates match against the caller's
// version and increment it atomically.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL progression store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// CreateProgress persists a new progress record.
func (s *PgStore) CreateProgress(ctx context.Context, p model.ParticipantProgress) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participant_progress (
			id, participant_id, workflow_id, current_stage_id, status,
			started_at, stage_entered_at, updated_at, completed_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.ParticipantID, p.WorkflowID, p.CurrentStageID, p.Status,
		p.StartedAt, p.StageEnteredAt, p.UpdatedAt, p.CompletedAt, p.Version,
	)
	if err != nil {
		return model.NewUnavailableError(fmt.Sprintf("insert progress: %v", err))
	}
	return nil
}

// GetProgress retrieves a progress record by ID.
func (s *PgStore) GetProgress(ctx context.Context, progressID string) (model.ParticipantProgress, error) {
	return s.getOne(ctx, `
		SELECT id, participant_id, workflow_id, current_stage_id, status,
		       started_at, stage_entered_at, updated_at, completed_at, version
		FROM participant_progress
		WHERE id = $1`,
		progressID,
		fmt.Sprintf("progress %q not found", progressID),
	)
}

// GetActiveByParticipant retrieves the participant's active progress.
func (s *PgStore) GetActiveByParticipant(ctx context.Context, participantID string) (model.ParticipantProgress, error) {
	return s.getOne(ctx, `
		SELECT id, participant_id, workflow_id, current_stage_id, status,
		       started_at, stage_entered_at, updated_at, completed_at, version
		FROM participant_progress
		WHERE participant_id = $1 AND status = 'active'`,
		participantID,
		fmt.Sprintf("no active progress for participant %q", participantID),
	)
}

func (s *PgStore) getOne(ctx context.Context, query, arg, notFoundMsg string) (model.ParticipantProgress, error) {
	var p model.ParticipantProgress
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.ParticipantID, &p.WorkflowID, &p.CurrentStageID, &p.Status,
		&p.StartedAt, &p.StageEnteredAt, &p.UpdatedAt, &p.CompletedAt, &p.Version,
	)
	if err == pgx.ErrNoRows {
		return model.ParticipantProgress{}, model.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return model.ParticipantProgress{}, model.NewUnavailableError(
			fmt.Sprintf("query progress: %v", err),
		)
	}
	return p, nil
}

// UpdateProgress persists changes with an optimistic version check.
func (s *PgStore) UpdateProgress(ctx context.Context, p model.ParticipantProgress) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE participant_progress
		SET current_stage_id = $1, status = $2, stage_entered_at = $3,
		    updated_at = $4, completed_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		p.CurrentStageID, p.Status, p.StageEnteredAt,
		p.UpdatedAt, p.CompletedAt, p.ID, p.Version,
	)
	if err != nil {
		return model.NewUnavailableError(fmt.Sprintf("update progress: %v", err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM participant_progress WHERE id = $1)`, p.ID,
		).Scan(&exists); err != nil {
			return model.NewUnavailableError(fmt.Sprintf("check progress: %v", err))
		}
		if !exists {
			return model.NewNotFoundError(fmt.Sprintf("progress %q not found", p.ID))
		}
		return model.NewConflictError(fmt.Sprintf(
			"progress %q version mismatch at %d", p.ID, p.Version,
		))
	}
	return nil
}

// ListActive returns every progress record with status "active".
func (s *PgStore) ListActive(ctx context.Context) ([]model.ParticipantProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_id, workflow_id, current_stage_id, status,
		       started_at, stage_entered_at, updated_at, completed_at, version
		FROM participant_progress
		WHERE status = 'active'
		ORDER BY started_at ASC`,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query active progress: %v", err))
	}
	defer rows.Close()

	var result []model.ParticipantProgress
	for rows.Next() {
		var p model.ParticipantProgress
		if err := rows.Scan(
			&p.ID, &p.ParticipantID, &p.WorkflowID, &p.CurrentStageID, &p.Status,
			&p.StartedAt, &p.StageEnteredAt, &p.UpdatedAt, &p.CompletedAt, &p.Version,
		); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan progress: %v", err))
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// AddCompletion records a requirement completion, idempotently per
// (progress, requirement) pair.
func (s *PgStore) AddCompletion(ctx context.Context, c model.RequirementCompletion) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO requirement_completions (
			id, progress_id, requirement_id, document_id,
			actor_id, actor_name, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (progress_id, requirement_id) DO NOTHING`,
		c.ID, c.ProgressID, c.RequirementID, c.DocumentID,
		c.ActorID, c.ActorName, c.CompletedAt,
	)
	if err != nil {
		return false, model.NewUnavailableError(fmt.Sprintf("insert completion: %v", err))
	}
	return tag.RowsAffected() > 0, nil
}

// CompletionsByProgress returns every completion recorded for a progress
// record.
func (s *PgStore) CompletionsByProgress(ctx context.Context, progressID string) ([]model.RequirementCompletion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, progress_id, requirement_id, document_id,
		       actor_id, actor_name, completed_at
		FROM requirement_completions
		WHERE progress_id = $1
		ORDER BY completed_at ASC`,
		progressID,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query completions: %v", err))
	}
	defer rows.Close()

	var result []model.RequirementCompletion
	for rows.Next() {
		var c model.RequirementCompletion
		if err := rows.Scan(
			&c.ID, &c.ProgressID, &c.RequirementID, &c.DocumentID,
			&c.ActorID, &c.ActorName, &c.CompletedAt,
		); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan completion: %v", err))
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
