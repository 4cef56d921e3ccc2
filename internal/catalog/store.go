// Package catalog holds the workflow configuration store: immutable workflow,
// stage, and requirement definitions consumed by the progression engine.
package catalog

import (
	"context"

	"github.com/brightpath/stagegate/model"
)

// Store provides read access to workflow definitions. Implementations must
// return stages in ascending order. Storage failures surface as UNAVAILABLE
// errors, never as empty results.
type Store interface {
	// GetWorkflow retrieves a workflow with all stages and requirements.
	// Returns NOT_FOUND when the workflow does not exist.
	GetWorkflow(ctx context.Context, workflowID string) (model.Workflow, error)

	// StagesByWorkflow returns the workflow's stages ordered by ascending
	// order value.
	StagesByWorkflow(ctx context.Context, workflowID string) ([]model.Stage, error)

	// RequirementsByStage returns the requirements attached to a stage.
	// Returns NOT_FOUND when the stage does not exist.
	RequirementsByStage(ctx context.Context, stageID string) ([]model.Requirement, error)
}
