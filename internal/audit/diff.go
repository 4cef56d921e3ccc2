// Package audit computes field-level diffs for mutations and appends them to
// an append-only audit store. Recording is best-effort: a failed audit write
// never fails the mutation that triggered it.
package audit

import (
	"bytes"
	"encoding/json"

	"github.com/brightpath/stagegate/model"
)

// ComputeDiff returns the field-level changes for a mutation.
//
//   - create: every key of after appears with From == nil.
//   - delete: every key of before appears with To == nil.
//   - update: the union of keys, filtered to those whose serialized values
//     differ. An unchanged record yields an empty diff.
func ComputeDiff(action string, before, after map[string]any) map[string]model.FieldChange {
	diff := make(map[string]model.FieldChange)

	switch action {
	case model.AuditActionCreate:
		for k, v := range after {
			diff[k] = model.FieldChange{From: nil, To: v}
		}
	case model.AuditActionDelete:
		for k, v := range before {
			diff[k] = model.FieldChange{From: v, To: nil}
		}
	case model.AuditActionUpdate:
		for k := range unionKeys(before, after) {
			b, hasBefore := before[k]
			a, hasAfter := after[k]
			if hasBefore && hasAfter && sameSerialized(b, a) {
				continue
			}
			diff[k] = model.FieldChange{From: b, To: a}
		}
	}

	return diff
}

// unionKeys returns the set of keys present in either map.
func unionKeys(a, b map[string]any) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

// sameSerialized compares two values by their JSON serialization, which
// treats 1 and 1.0 (or a struct and its decoded map form) as equal the same
// way the persisted snapshots would.
func sameSerialized(a, b any) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// cloneSnapshot deep-copies a snapshot via a JSON round trip so the audit
// entry stays valid after the source record changes again. Unserializable
// values yield a nil snapshot rather than a live reference.
func cloneSnapshot(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		return nil
	}
	var dst map[string]any
	if err := json.Unmarshal(data, &dst); err != nil {
		return nil
	}
	return dst
}
