package audit

import (
	"testing"

	"github.com/brightpath/stagegate/model"
)

func TestComputeDiff_create(t *testing.T) {
	after := map[string]any{
		"id":     "doc-1",
		"status": "pending",
		"size":   1024,
	}

	diff := ComputeDiff(model.AuditActionCreate, nil, after)

	if len(diff) != len(after) {
		t.Fatalf("diff keys = %d, want %d", len(diff), len(after))
	}
	for k, v := range after {
		change, ok := diff[k]
		if !ok {
			t.Fatalf("missing key %q", k)
		}
		if change.From != nil {
			t.Errorf("From[%q] = %v, want nil", k, change.From)
		}
		if change.To != v {
			t.Errorf("To[%q] = %v, want %v", k, change.To, v)
		}
	}
}

func TestComputeDiff_delete(t *testing.T) {
	before := map[string]any{"id": "doc-1", "status": "approved"}

	diff := ComputeDiff(model.AuditActionDelete, before, nil)

	if len(diff) != 2 {
		t.Fatalf("diff keys = %d", len(diff))
	}
	if diff["status"].From != "approved" || diff["status"].To != nil {
		t.Errorf("status change = %+v", diff["status"])
	}
}

func TestComputeDiff_update_changedOnly(t *testing.T) {
	before := map[string]any{"status": "pending", "notes": "", "file_name": "id.pdf"}
	after := map[string]any{"status": "approved", "notes": "looks good", "file_name": "id.pdf"}

	diff := ComputeDiff(model.AuditActionUpdate, before, after)

	if len(diff) != 2 {
		t.Fatalf("diff = %v, want 2 changed keys", diff)
	}
	if _, ok := diff["file_name"]; ok {
		t.Error("unchanged file_name should not appear in diff")
	}
	if diff["status"].From != "pending" || diff["status"].To != "approved" {
		t.Errorf("status change = %+v", diff["status"])
	}
}

func TestComputeDiff_update_addedAndRemovedKeys(t *testing.T) {
	before := map[string]any{"status": "pending", "temp": "x"}
	after := map[string]any{"status": "pending", "decided_by": "u-1"}

	diff := ComputeDiff(model.AuditActionUpdate, before, after)

	if len(diff) != 2 {
		t.Fatalf("diff = %v", diff)
	}
	if diff["temp"].From != "x" || diff["temp"].To != nil {
		t.Errorf("removed key change = %+v", diff["temp"])
	}
	if diff["decided_by"].From != nil || diff["decided_by"].To != "u-1" {
		t.Errorf("added key change = %+v", diff["decided_by"])
	}
}

func TestComputeDiff_update_noChanges(t *testing.T) {
	snap := map[string]any{"status": "pending", "version": 3}
	diff := ComputeDiff(model.AuditActionUpdate, snap, snap)
	if len(diff) != 0 {
		t.Errorf("diff = %v, want empty", diff)
	}
}

func TestComputeDiff_update_numericEquivalence(t *testing.T) {
	// An int before and its decoded float64 form after serialize identically.
	before := map[string]any{"version": 3}
	after := map[string]any{"version": float64(3)}
	diff := ComputeDiff(model.AuditActionUpdate, before, after)
	if len(diff) != 0 {
		t.Errorf("diff = %v, want empty", diff)
	}
}

func TestCloneSnapshot_isDeepCopy(t *testing.T) {
	src := map[string]any{"nested": map[string]any{"k": "v"}}
	clone := cloneSnapshot(src)

	src["nested"].(map[string]any)["k"] = "mutated"
	if clone["nested"].(map[string]any)["k"] != "v" {
		t.Error("clone shares state with source")
	}
}

func TestCloneSnapshot_nil(t *testing.T) {
	if cloneSnapshot(nil) != nil {
		t.Error("nil snapshot should clone to nil")
	}
}
