package model

import "time"

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// FieldChange is the before/after pair for a single field in an audit diff.
// From is nil for created fields and To is nil for deleted ones.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// AuditEntry is an append-only record of a single mutation. Snapshots are
// deep copies taken at record time so the entry stays valid after the source
// record changes again. Entries are never mutated or deleted.
type AuditEntry struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	TableName string                 `json:"table_name"`
	RecordID  string                 `json:"record_id"`
	Before    map[string]any         `json:"before,omitempty"`
	After     map[string]any         `json:"after,omitempty"`
	Diff      map[string]FieldChange `json:"diff"`
	ActorID   string                 `json:"actor_id"`
	ActorName string                 `json:"actor_name"`
	Meta      map[string]string      `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
