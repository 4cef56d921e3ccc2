package audit

import (
	"context"

	"github.com/brightpath/stagegate/model"
)

// Store persists audit entries. Entries are append-only: implementations
// provide no update or delete operations.
type Store interface {
	// Append durably adds an entry to the trail.
	Append(ctx context.Context, entry model.AuditEntry) error

	// ListByRecord retrieves all entries for a record, oldest first.
	ListByRecord(ctx context.Context, tableName, recordID string) ([]model.AuditEntry, error)
}
