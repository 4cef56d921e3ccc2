package document

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath/stagegate/model"
)

// PgStore is a PostgreSQL-backed document Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL document store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// CreateDocument persists a new document.
func (s *PgStore) CreateDocument(ctx context.Context, d model.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (
			id, participant_id, requirement_id, file_name, mime_type, url,
			status, notes, decided_by, decided_at, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.ParticipantID, d.RequirementID, d.FileName, d.MimeType, d.URL,
		d.Status, d.Notes, d.DecidedBy, d.DecidedAt, d.UploadedAt,
	)
	if err != nil {
		return model.NewUnavailableError(fmt.Sprintf("insert document: %v", err))
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *PgStore) GetDocument(ctx context.Context, documentID string) (model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, participant_id, requirement_id, file_name, mime_type, url,
		       status, notes, decided_by, decided_at, uploaded_at
		FROM documents
		WHERE id = $1`,
		documentID,
	).Scan(
		&d.ID, &d.ParticipantID, &d.RequirementID, &d.FileName, &d.MimeType, &d.URL,
		&d.Status, &d.Notes, &d.DecidedBy, &d.DecidedAt, &d.UploadedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Document{}, model.NewNotFoundError(
			fmt.Sprintf("document %q not found", documentID),
		)
	}
	if err != nil {
		return model.Document{}, model.NewUnavailableError(
			fmt.Sprintf("query document: %v", err),
		)
	}
	return d, nil
}

// ApplyDecision persists a decided document if the stored one is still
// pending. The status guard in the WHERE clause makes racing decisions lose
// cleanly.
func (s *PgStore) ApplyDecision(ctx context.Context, d model.Document) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, notes = $2, decided_by = $3, decided_at = $4
		WHERE id = $5 AND status = 'pending'`,
		d.Status, d.Notes, d.DecidedBy, d.DecidedAt, d.ID,
	)
	if err != nil {
		return model.NewUnavailableError(fmt.Sprintf("update document: %v", err))
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := s.pool.QueryRow(ctx,
			`SELECT status FROM documents WHERE id = $1`, d.ID,
		).Scan(&status)
		if err == pgx.ErrNoRows {
			return model.NewNotFoundError(fmt.Sprintf("document %q not found", d.ID))
		}
		if err != nil {
			return model.NewUnavailableError(fmt.Sprintf("check document: %v", err))
		}
		return model.NewAlreadyDecidedError(d.ID, status)
	}
	return nil
}

// ListByParticipant returns the participant's documents, oldest first.
func (s *PgStore) ListByParticipant(ctx context.Context, participantID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_id, requirement_id, file_name, mime_type, url,
		       status, notes, decided_by, decided_at, uploaded_at
		FROM documents
		WHERE participant_id = $1
		ORDER BY uploaded_at ASC`,
		participantID,
	)
	if err != nil {
		return nil, model.NewUnavailableError(fmt.Sprintf("query documents: %v", err))
	}
	defer rows.Close()

	var result []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(
			&d.ID, &d.ParticipantID, &d.RequirementID, &d.FileName, &d.MimeType, &d.URL,
			&d.Status, &d.Notes, &d.DecidedBy, &d.DecidedAt, &d.UploadedAt,
		); err != nil {
			return nil, model.NewUnavailableError(fmt.Sprintf("scan document: %v", err))
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
