package catalog

import (
	"fmt"
	"slices"

	"github.com/brightpath/stagegate/model"
)

// Validator checks workflow definitions for structural errors before they are
// admitted to a registry.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns every structural error found across the given workflows.
// An empty result means the set is admissible.
func (v *Validator) Validate(workflows []model.Workflow) []error {
	var errs []error

	seenWorkflows := make(map[string]bool)
	seenStages := make(map[string]string) // stage ID -> workflow ID

	for _, wf := range workflows {
		if wf.ID == "" {
			errs = append(errs, fmt.Errorf("workflow %q: missing id", wf.Name))
			continue
		}
		if seenWorkflows[wf.ID] {
			errs = append(errs, fmt.Errorf("workflow %q: duplicate id", wf.ID))
			continue
		}
		seenWorkflows[wf.ID] = true

		if len(wf.Stages) == 0 {
			errs = append(errs, fmt.Errorf("workflow %q: has no stages", wf.ID))
		}

		// Stage order values must be unique and strictly increasing.
		prevOrder := 0
		for i, stage := range wf.Stages {
			if stage.ID == "" {
				errs = append(errs, fmt.Errorf("workflow %q: stage %d missing id", wf.ID, i))
				continue
			}
			if owner, dup := seenStages[stage.ID]; dup {
				errs = append(errs, fmt.Errorf("workflow %q: stage %q already defined in workflow %q", wf.ID, stage.ID, owner))
				continue
			}
			seenStages[stage.ID] = wf.ID

			if stage.Order <= prevOrder && i > 0 {
				errs = append(errs, fmt.Errorf("workflow %q: stage %q order %d is not strictly greater than the previous stage", wf.ID, stage.ID, stage.Order))
			}
			if stage.Order < 1 {
				errs = append(errs, fmt.Errorf("workflow %q: stage %q order must be at least 1", wf.ID, stage.ID))
			}
			prevOrder = stage.Order

			errs = append(errs, v.validateRequirements(wf.ID, stage)...)
		}
	}

	return errs
}

// validateRequirements checks a single stage's requirement list.
func (v *Validator) validateRequirements(workflowID string, stage model.Stage) []error {
	var errs []error
	seen := make(map[string]bool)

	for _, req := range stage.Requirements {
		if req.ID == "" {
			errs = append(errs, fmt.Errorf("workflow %q: stage %q has a requirement with no id", workflowID, stage.ID))
			continue
		}
		if seen[req.ID] {
			errs = append(errs, fmt.Errorf("workflow %q: requirement %q duplicated in stage %q", workflowID, req.ID, stage.ID))
		}
		seen[req.ID] = true

		if !slices.Contains(model.ValidRequirementKinds, req.Kind) {
			errs = append(errs, fmt.Errorf("workflow %q: requirement %q has unknown kind %q", workflowID, req.ID, req.Kind))
		}
	}
	return errs
}
