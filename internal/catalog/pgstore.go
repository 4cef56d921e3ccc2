package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath/stagegate/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5. Definitions are written
// by external tooling; this store only reads them.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL catalog store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// GetWorkflow retrieves a workflow with its stages and requirements.
func (s *PgStore) GetWorkflow(ctx context.Context, workflowID string) (model.Workflow, error) {
	var wf model.Workflow
	err := s.pool.QueryRow(ctx, `
		SELECT id, name FROM workflows WHERE id = $1`,
		workflowID,
	).Scan(&wf.ID, &wf.Name)
	if err == pgx.ErrNoRows {
		return model.Workflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	if err != nil {
		return model.Workflow{}, model.NewUnavailableError(
			fmt.Sprintf("query workflow: %v", err),
		)
	}

	stages, err := s.StagesByWorkflow(ctx, workflowID)
	if err != nil {
		return model.Workflow{}, err
	}
	for i := range stages {
		reqs, err := s.RequirementsByStage(ctx, stages[i].ID)
		if err != nil {
			return model.Workflow{}, err
		}
		stages[i].Requirements = reqs
	}
	wf.Stages = stages

	return wf, nil
}

// StagesByWorkflow returns the workflow's stages ordered by ascending order.
func (s *PgStore) StagesByWorkflow(ctx context.Context, workflowID string) ([]model.Stage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workflow_id, name, stage_order, auto_advance
		FROM stages
		WHERE workflow_id = $1
		ORDER BY stage_order ASC`,
		workflowID,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query stages: %v", err))
	}
	defer rows.Close()

	var stages []model.Stage
	for rows.Next() {
		var st model.Stage
		if err := rows.Scan(&st.ID, &st.WorkflowID, &st.Name, &st.Order, &st.AutoAdvance); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan stage: %v", err))
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("iterate stages: %v", err))
	}
	if stages == nil {
		// Distinguish an unknown workflow from one with no stages.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, workflowID,
		).Scan(&exists); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("check workflow: %v", err))
		}
		if !exists {
			return nil, model.NewNotFoundError(fmt.Sprintf("workflow %q not found", workflowID))
		}
	}
	return stages, nil
}

// RequirementsByStage returns the requirements attached to a stage.
func (s *PgStore) RequirementsByStage(ctx context.Context, stageID string) ([]model.Requirement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, stage_id, name, kind, is_required
		FROM requirements
		WHERE stage_id = $1
		ORDER BY id ASC`,
		stageID,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query requirements: %v", err))
	}
	defer rows.Close()

	var reqs []model.Requirement
	for rows.Next() {
		var req model.Requirement
		if err := rows.Scan(&req.ID, &req.StageID, &req.Name, &req.Kind, &req.IsRequired); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan requirement: %v", err))
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
