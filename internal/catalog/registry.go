package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/brightpath/stagegate/model"
)

// Registry is an immutable, in-memory Store built from validated workflow
// definitions. Lookups never touch storage, so all reads complete
// synchronously and without error beyond NOT_FOUND.
type Registry struct {
	workflows    map[string]model.Workflow
	stageOwner   map[string]string // stage ID -> workflow ID
	requirements map[string][]model.Requirement
}

// NewRegistry builds a Registry from workflow definitions. Stages are sorted
// by ascending order once at construction.
func NewRegistry(workflows []model.Workflow) *Registry {
	r := &Registry{
		workflows:    make(map[string]model.Workflow, len(workflows)),
		stageOwner:   make(map[string]string),
		requirements: make(map[string][]model.Requirement),
	}

	for _, wf := range workflows {
		sort.Slice(wf.Stages, func(i, j int) bool {
			return wf.Stages[i].Order < wf.Stages[j].Order
		})
		r.workflows[wf.ID] = wf
		for _, stage := range wf.Stages {
			r.stageOwner[stage.ID] = wf.ID
			r.requirements[stage.ID] = stage.Requirements
		}
	}

	return r
}

// GetWorkflow retrieves a workflow by ID.
func (r *Registry) GetWorkflow(_ context.Context, workflowID string) (model.Workflow, error) {
	wf, ok := r.workflows[workflowID]
	if !ok {
		return model.Workflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	return wf, nil
}

// StagesByWorkflow returns the workflow's stages in ascending order.
func (r *Registry) StagesByWorkflow(_ context.Context, workflowID string) ([]model.Stage, error) {
	wf, ok := r.workflows[workflowID]
	if !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	return wf.Stages, nil
}

// RequirementsByStage returns the requirements attached to a stage.
func (r *Registry) RequirementsByStage(_ context.Context, stageID string) ([]model.Requirement, error) {
	if _, ok := r.stageOwner[stageID]; !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("stage %q not found", stageID),
		)
	}
	return r.requirements[stageID], nil
}

// Len returns the number of registered workflows. Used by readiness checks.
func (r *Registry) Len() int {
	return len(r.workflows)
}
