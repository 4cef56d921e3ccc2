package model

import (
	"testing"
	"time"
)

func testWorkflow() Workflow {
	return Workflow{
		ID:   "wf-onboarding",
		Name: "Onboarding",
		Stages: []Stage{
			{ID: "st-intake", WorkflowID: "wf-onboarding", Name: "Intake", Order: 1},
			{ID: "st-training", WorkflowID: "wf-onboarding", Name: "Training", Order: 2},
			{ID: "st-placement", WorkflowID: "wf-onboarding", Name: "Placement", Order: 5},
		},
	}
}

func TestWorkflow_NextStage(t *testing.T) {
	wf := testWorkflow()

	next := wf.NextStage(1)
	if next == nil || next.ID != "st-training" {
		t.Fatalf("NextStage(1) = %+v, want st-training", next)
	}

	// Gaps in order values are allowed; the smallest greater order wins.
	next = wf.NextStage(2)
	if next == nil || next.ID != "st-placement" {
		t.Fatalf("NextStage(2) = %+v, want st-placement", next)
	}

	if wf.NextStage(5) != nil {
		t.Error("NextStage past the last stage should be nil")
	}
}

func TestWorkflow_StageByID(t *testing.T) {
	wf := testWorkflow()
	if s := wf.StageByID("st-training"); s == nil || s.Order != 2 {
		t.Errorf("StageByID(st-training) = %+v", s)
	}
	if wf.StageByID("st-missing") != nil {
		t.Error("expected nil for unknown stage")
	}
}

func TestWorkflow_MaxOrder(t *testing.T) {
	wf := testWorkflow()
	if got := wf.MaxOrder(); got != 5 {
		t.Errorf("MaxOrder = %d, want 5", got)
	}
}

func TestParticipantProgress_DaysInCurrentStage(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	p := ParticipantProgress{StageEnteredAt: now.Add(-49 * time.Hour)}
	if got := p.DaysInCurrentStage(now); got != 2 {
		t.Errorf("DaysInCurrentStage = %d, want 2", got)
	}
}

func TestEvaluation_helpers(t *testing.T) {
	ev := Evaluation{
		Missing: []MissingRequirement{
			{ID: "r1", Name: "ID Document", Kind: RequirementKindDocument},
			{ID: "r2", Name: "Safety Quiz", Kind: RequirementKindTraining},
		},
	}

	names := ev.MissingNames()
	if len(names) != 2 || names[0] != "ID Document" || names[1] != "Safety Quiz" {
		t.Errorf("MissingNames = %v", names)
	}
	if !ev.HasMissingOfKind(RequirementKindDocument) {
		t.Error("expected missing document requirement")
	}
	if ev.HasMissingOfKind(RequirementKindApproval) {
		t.Error("did not expect missing approval requirement")
	}
}
