// Package document implements the bounded document decision workflow:
// uploads enter in pending status and receive exactly one approve or reject
// decision. Approvals of requirement-linked documents feed requirement
// completions into the progression engine.
package document

import (
	"context"

	"github.com/brightpath/stagegate/model"
)

// Store persists documents. Storage failures surface as UNAVAILABLE errors,
// never as empty results.
type Store interface {
	// CreateDocument persists a new document.
	CreateDocument(ctx context.Context, doc model.Document) error

	// GetDocument retrieves a document by ID. Returns NOT_FOUND when it does
	// not exist.
	GetDocument(ctx context.Context, documentID string) (model.Document, error)

	// ApplyDecision persists a decided document. The stored document must
	// still be pending; otherwise the write fails with ALREADY_DECIDED, so a
	// racing second decision cannot overwrite the first.
	ApplyDecision(ctx context.Context, doc model.Document) error

	// ListByParticipant returns the participant's documents, oldest first.
	ListByParticipant(ctx context.Context, participantID string) ([]model.Document, error)
}
