package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const onboardingYAML = `
workflow:
  id: wf-onboarding
  name: Candidate Onboarding
  stages:
    - id: st-intake
      name: Intake
      order: 1
      auto_advance: true
      requirements:
        - id: req-id-doc
          name: ID Document
          kind: document
          is_required: true
    - id: st-training
      name: Training
      order: 2
      requirements:
        - id: req-quiz
          name: Safety Quiz
          kind: training
          is_required: true
        - id: req-agreement
          name: Signed Agreement
          kind: document
          is_required: true
`

func writeWorkflowFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "onboarding.yaml", onboardingYAML)

	loader := NewLoader()
	wf, err := loader.LoadFile(filepath.Join(dir, "onboarding.yaml"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if wf.ID != "wf-onboarding" {
		t.Errorf("ID = %q", wf.ID)
	}
	if len(wf.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(wf.Stages))
	}
	if !wf.Stages[0].AutoAdvance {
		t.Error("Intake should auto-advance")
	}

	// Back-references are filled in from position.
	if wf.Stages[0].WorkflowID != "wf-onboarding" {
		t.Errorf("stage WorkflowID = %q", wf.Stages[0].WorkflowID)
	}
	if wf.Stages[1].Requirements[0].StageID != "st-training" {
		t.Errorf("requirement StageID = %q", wf.Stages[1].Requirements[0].StageID)
	}
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "onboarding.yaml", onboardingYAML)
	writeWorkflowFile(t, dir, "notes.txt", "not a workflow")
	writeWorkflowFile(t, dir, "second.yml", `
workflow:
  id: wf-second
  name: Second
  stages:
    - id: st-only
      name: Only
      order: 1
`)

	loader := NewLoader()
	workflows, err := loader.LoadAll([]string{dir})
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(workflows) != 2 {
		t.Fatalf("workflows = %d, want 2 (txt file must be skipped)", len(workflows))
	}
}

func TestLoader_LoadAll_badYAML(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "broken.yaml", "workflow: [not: valid")

	loader := NewLoader()
	if _, err := loader.LoadAll([]string{dir}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoader_LoadAll_missingDir(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.LoadAll([]string{"/nonexistent-dir"}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
