package catalog

import (
	"context"
	"testing"

	"github.com/brightpath/stagegate/model"
)

func TestRegistry_GetWorkflow(t *testing.T) {
	reg := NewRegistry([]model.Workflow{validWorkflow()})
	ctx := context.Background()

	wf, err := reg.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow error: %v", err)
	}
	if wf.Name != "Workflow One" {
		t.Errorf("Name = %q", wf.Name)
	}

	_, err = reg.GetWorkflow(ctx, "wf-missing")
	if !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegistry_StagesByWorkflow_sorted(t *testing.T) {
	// Feed stages out of order; the registry must sort them.
	wf := validWorkflow()
	wf.Stages[0], wf.Stages[2] = wf.Stages[2], wf.Stages[0]

	reg := NewRegistry([]model.Workflow{wf})
	stages, err := reg.StagesByWorkflow(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("StagesByWorkflow error: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("stages = %d", len(stages))
	}
	for i := 1; i < len(stages); i++ {
		if stages[i].Order <= stages[i-1].Order {
			t.Fatalf("stages not in ascending order: %v", stages)
		}
	}
}

func TestRegistry_RequirementsByStage(t *testing.T) {
	reg := NewRegistry([]model.Workflow{validWorkflow()})
	ctx := context.Background()

	reqs, err := reg.RequirementsByStage(ctx, "st-1")
	if err != nil {
		t.Fatalf("RequirementsByStage error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ID != "req-1" {
		t.Errorf("reqs = %v", reqs)
	}

	// A stage with no requirements is empty, not an error.
	reqs, err = reg.RequirementsByStage(ctx, "st-2")
	if err != nil {
		t.Fatalf("RequirementsByStage error: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("reqs = %v, want empty", reqs)
	}

	_, err = reg.RequirementsByStage(ctx, "st-missing")
	if !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegistry_Len(t *testing.T) {
	reg := NewRegistry([]model.Workflow{validWorkflow()})
	if reg.Len() != 1 {
		t.Errorf("Len = %d", reg.Len())
	}
}
