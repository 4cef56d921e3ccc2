// Package model contains the domain types and typed errors shared by all
// components of the workflow core.
package model

// Requirement kinds.
const (
	RequirementKindDocument = "document"
	RequirementKindTraining = "training"
	RequirementKindApproval = "approval"
	RequirementKindTask     = "task"
)

// ValidRequirementKinds lists every accepted requirement kind.
var ValidRequirementKinds = []string{
	RequirementKindDocument,
	RequirementKindTraining,
	RequirementKindApproval,
	RequirementKindTask,
}

// Workflow is an immutable, versioned definition of an ordered set of stages
// a participant progresses through.
type Workflow struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Stages []Stage `json:"stages" yaml:"stages"`
}

// Stage is one step in a workflow. Order values are unique and strictly
// increasing within a workflow.
type Stage struct {
	ID           string        `json:"id" yaml:"id"`
	WorkflowID   string        `json:"workflow_id" yaml:"workflow_id"`
	Name         string        `json:"name" yaml:"name"`
	Order        int           `json:"order" yaml:"order"`
	AutoAdvance  bool          `json:"auto_advance" yaml:"auto_advance"`
	Requirements []Requirement `json:"requirements" yaml:"requirements"`
}

// Requirement is a condition that must be satisfied to leave a stage.
type Requirement struct {
	ID         string `json:"id" yaml:"id"`
	StageID    string `json:"stage_id" yaml:"stage_id"`
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	IsRequired bool   `json:"is_required" yaml:"is_required"`
}

// StageByID returns the stage with the given ID, or nil.
func (w *Workflow) StageByID(stageID string) *Stage {
	for i := range w.Stages {
		if w.Stages[i].ID == stageID {
			return &w.Stages[i]
		}
	}
	return nil
}

// NextStage returns the stage with the smallest order strictly greater than
// the given order, or nil when the given order is the last one. Stages are
// held in ascending order, so the first match wins.
func (w *Workflow) NextStage(after int) *Stage {
	var next *Stage
	for i := range w.Stages {
		s := &w.Stages[i]
		if s.Order <= after {
			continue
		}
		if next == nil || s.Order < next.Order {
			next = s
		}
	}
	return next
}

// MaxOrder returns the highest stage order in the workflow, or 0 for an
// empty workflow.
func (w *Workflow) MaxOrder() int {
	max := 0
	for i := range w.Stages {
		if w.Stages[i].Order > max {
			max = w.Stages[i].Order
		}
	}
	return max
}
