package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath/stagegate/model"
)

// PgStore is a PostgreSQL-backed audit Store using pgx/v5. The audit_entries
// table carries no UPDATE or DELETE grants; append-only is enforced at the
// schema level as well as here.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL audit store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Append inserts an audit entry.
func (s *PgStore) Append(ctx context.Context, entry model.AuditEntry) error {
	beforeJSON, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	afterJSON, err := json.Marshal(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}
	diffJSON, err := json.Marshal(entry.Diff)
	if err != nil {
		return fmt.Errorf("marshal diff: %w", err)
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_entries (
			id, action, table_name, record_id,
			before_snapshot, after_snapshot, field_diff,
			actor_id, actor_name, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.Action, entry.TableName, entry.RecordID,
		beforeJSON, afterJSON, diffJSON,
		entry.ActorID, entry.ActorName, metaJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByRecord retrieves all entries for a record, oldest first.
func (s *PgStore) ListByRecord(ctx context.Context, tableName, recordID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, action, table_name, record_id,
		       before_snapshot, after_snapshot, field_diff,
		       actor_id, actor_name, meta, created_at
		FROM audit_entries
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at ASC`,
		tableName, recordID,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query audit entries: %v", err))
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var beforeJSON, afterJSON, diffJSON, metaJSON []byte
		if err := rows.Scan(
			&e.ID, &e.Action, &e.TableName, &e.RecordID,
			&beforeJSON, &afterJSON, &diffJSON,
			&e.ActorID, &e.ActorName, &metaJSON, &e.CreatedAt,
		); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan audit entry: %v", err))
		}
		_ = json.Unmarshal(beforeJSON, &e.Before)
		_ = json.Unmarshal(afterJSON, &e.After)
		_ = json.Unmarshal(diffJSON, &e.Diff)
		_ = json.Unmarshal(metaJSON, &e.Meta)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
