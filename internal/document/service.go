package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/model"
)

const tableDocuments = "documents"

// Authorizer is the external authorization collaborator consulted before a
// decision is applied.
type Authorizer interface {
	// CanDecide reports whether the actor may decide the document.
	CanDecide(ctx context.Context, actor model.Actor, doc model.Document) (bool, error)
}

// AllowAll authorizes every decision. Used when authorization is enforced
// upstream.
type AllowAll struct{}

// CanDecide always allows.
func (AllowAll) CanDecide(context.Context, model.Actor, model.Document) (bool, error) {
	return true, nil
}

// BlobStore is the external collaborator holding document bytes. The service
// stores only the returned URL.
type BlobStore interface {
	Put(ctx context.Context, fileName, mimeType string, data []byte) (string, error)
}

// CompletionSink receives requirement completions from approved documents.
// Implemented by the progression engine.
type CompletionSink interface {
	OnRequirementCompleted(ctx context.Context, participantID, requirementID, documentID string, actor model.Actor) error
}

// Auditor records committed mutations. Implementations are best-effort and
// never return errors.
type Auditor interface {
	Record(ctx context.Context, action, tableName, recordID string, before, after map[string]any, actor model.Actor)
}

// Announcer publishes a status-change event to a resource room.
type Announcer interface {
	AnnounceStatus(resourceType, resourceID string, payload map[string]any)
}

// Metrics is the subset of instrumentation the service reports to.
type Metrics interface {
	RecordDocumentDecision(decision string)
}

// UploadInput carries the metadata and optional content of a new document.
type UploadInput struct {
	ParticipantID string
	RequirementID string
	FileName      string
	MimeType      string
	// URL references already-stored bytes. Ignored when Content is set.
	URL     string
	Content []byte
}

// Service coordinates document uploads and decisions.
type Service struct {
	store       Store
	blobs       BlobStore
	authz       Authorizer
	completions CompletionSink
	auditor     Auditor
	announcer   Announcer
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a document service. blobs, announcer, and metrics may be
// nil; a nil authz allows every decision.
func NewService(store Store, blobs BlobStore, authz Authorizer, completions CompletionSink, auditor Auditor, announcer Announcer, metrics Metrics, logger *zap.Logger) *Service {
	if authz == nil {
		authz = AllowAll{}
	}
	return &Service{
		store:       store,
		blobs:       blobs,
		authz:       authz,
		completions: completions,
		auditor:     auditor,
		announcer:   announcer,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Upload creates a document in pending status. It has no progression side
// effect; only a later approval feeds requirement completions.
func (s *Service) Upload(ctx context.Context, input UploadInput, actor model.Actor) (model.Document, error) {
	if input.ParticipantID == "" {
		return model.Document{}, model.NewBadRequestError("participant id is required")
	}
	if input.FileName == "" {
		return model.Document{}, model.NewValidationError("file name is required")
	}

	url := input.URL
	if len(input.Content) > 0 {
		if s.blobs == nil {
			return model.Document{}, model.NewUnavailableError("no blob store configured")
		}
		var err error
		url, err = s.blobs.Put(ctx, input.FileName, input.MimeType, input.Content)
		if err != nil {
			return model.Document{}, model.NewUnavailableError(
				fmt.Sprintf("store document content: %v", err),
			)
		}
	}

	doc := model.Document{
		ID:            uuid.New().String(),
		ParticipantID: input.ParticipantID,
		RequirementID: input.RequirementID,
		FileName:      input.FileName,
		MimeType:      input.MimeType,
		URL:           url,
		Status:        model.DocumentStatusPending,
		UploadedAt:    s.now().UTC(),
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return model.Document{}, err
	}
	s.auditor.Record(ctx, model.AuditActionCreate, tableDocuments, doc.ID, nil, docSnapshot(doc), actor)

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("participant_id", doc.ParticipantID),
		zap.String("requirement_id", doc.RequirementID),
		zap.String("file_name", doc.FileName),
	)
	return doc, nil
}

// Get retrieves a document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (model.Document, error) {
	return s.store.GetDocument(ctx, documentID)
}

// ListByParticipant returns the participant's documents, oldest first.
func (s *Service) ListByParticipant(ctx context.Context, participantID string) ([]model.Document, error) {
	return s.store.ListByParticipant(ctx, participantID)
}

// Decide applies a single approve or reject decision to a pending document.
// The authorization check runs before any state change; an already-decided
// document fails with ALREADY_DECIDED. Approving a requirement-linked
// document records the completion with the progression engine.
func (s *Service) Decide(ctx context.Context, documentID, decision, notes string, actor model.Actor) (model.Document, error) {
	if decision != model.DecisionApprove && decision != model.DecisionReject {
		return model.Document{}, model.NewValidationError(
			fmt.Sprintf("decision must be %q or %q", model.DecisionApprove, model.DecisionReject),
		)
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return model.Document{}, err
	}

	allowed, err := s.authz.CanDecide(ctx, actor, doc)
	if err != nil {
		return model.Document{}, model.NewUnavailableError(
			fmt.Sprintf("authorization check: %v", err),
		)
	}
	if !allowed {
		return model.Document{}, model.NewForbiddenError(
			fmt.Sprintf("actor %q may not decide document %q", actor.ID, documentID),
		)
	}

	if doc.Decided() {
		return model.Document{}, model.NewAlreadyDecidedError(documentID, doc.Status)
	}

	before := docSnapshot(doc)
	now := s.now().UTC()
	switch decision {
	case model.DecisionApprove:
		doc.Status = model.DocumentStatusApproved
	case model.DecisionReject:
		doc.Status = model.DocumentStatusRejected
	}
	doc.Notes = notes
	doc.DecidedBy = actor.ID
	doc.DecidedAt = &now

	if err := s.store.ApplyDecision(ctx, doc); err != nil {
		return model.Document{}, err
	}
	s.auditor.Record(ctx, model.AuditActionUpdate, tableDocuments, doc.ID, before, docSnapshot(doc), actor)

	if s.metrics != nil {
		s.metrics.RecordDocumentDecision(decision)
	}
	if s.announcer != nil {
		s.announcer.AnnounceStatus(model.ResourceTypeDocument, doc.ID, map[string]any{
			"documentId":    doc.ID,
			"participantId": doc.ParticipantID,
			"status":        doc.Status,
			"decidedBy":     doc.DecidedBy,
		})
	}

	s.logger.Info("document decided",
		zap.String("document_id", doc.ID),
		zap.String("participant_id", doc.ParticipantID),
		zap.String("decision", decision),
		zap.String("actor_id", actor.ID),
	)

	if doc.Status == model.DocumentStatusApproved && doc.RequirementID != "" {
		if err := s.completions.OnRequirementCompleted(ctx, doc.ParticipantID, doc.RequirementID, doc.ID, actor); err != nil {
			// The decision has committed; report the completion failure
			// without undoing it.
			return doc, err
		}
	}
	return doc, nil
}

// docSnapshot renders a document as an audit snapshot.
func docSnapshot(d model.Document) map[string]any {
	snap := map[string]any{
		"id":             d.ID,
		"participant_id": d.ParticipantID,
		"requirement_id": d.RequirementID,
		"file_name":      d.FileName,
		"mime_type":      d.MimeType,
		"url":            d.URL,
		"status":         d.Status,
		"notes":          d.Notes,
		"decided_by":     d.DecidedBy,
		"uploaded_at":    d.UploadedAt.Format(time.RFC3339Nano),
	}
	if d.DecidedAt != nil {
		snap["decided_at"] = d.DecidedAt.Format(time.RFC3339Nano)
	}
	return snap
}
