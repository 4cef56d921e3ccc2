package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightpath/stagegate/internal/audit"
	"github.com/brightpath/stagegate/internal/document"
	"github.com/brightpath/stagegate/internal/progression"
	"github.com/brightpath/stagegate/model"
)

type handlers struct {
	engine    *progression.Engine
	documents *document.Service
	auditLog  audit.Store
}

// requireActor pulls the acting identity from the context, writing a 400 when
// the gateway headers were missing.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := model.ActorFrom(r.Context())
	if !ok {
		WriteError(w, model.NewBadRequestError("missing X-Actor-Id header"))
		return model.Actor{}, false
	}
	return actor, true
}

// --- participants ---

type startProgressRequest struct {
	ParticipantID string `json:"participantId"`
	WorkflowID    string `json:"workflowId"`
}

func (h *handlers) startProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req startProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	progress, err := h.engine.Start(r.Context(), req.ParticipantID, req.WorkflowID, actor)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, progress)
}

func (h *handlers) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.engine.Get(r.Context(), chi.URLParam(r, "progressId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

func (h *handlers) getEvaluation(w http.ResponseWriter, r *http.Request) {
	eval, err := h.engine.EvaluateAdvancement(r.Context(), chi.URLParam(r, "progressId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, eval)
}

func (h *handlers) advance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	progress, err := h.engine.Advance(r.Context(), chi.URLParam(r, "progressId"), actor)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, progress)
}

// --- documents ---

type uploadDocumentRequest struct {
	ParticipantID string `json:"participantId"`
	RequirementID string `json:"requirementId,omitempty"`
	FileName      string `json:"fileName"`
	MimeType      string `json:"mimeType,omitempty"`
	URL           string `json:"url,omitempty"`
	Content       []byte `json:"content,omitempty"`
}

func (h *handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req uploadDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.documents.Upload(r.Context(), document.UploadInput{
		ParticipantID: req.ParticipantID,
		RequirementID: req.RequirementID,
		FileName:      req.FileName,
		MimeType:      req.MimeType,
		URL:           req.URL,
		Content:       req.Content,
	}, actor)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, doc)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		WriteError(w, model.NewBadRequestError("participantId query parameter is required"))
		return
	}
	docs, err := h.documents.ListByParticipant(r.Context(), participantID)
	if err != nil {
		WriteError(w, err)
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Get(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

func (h *handlers) decideDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.documents.Decide(r.Context(), chi.URLParam(r, "documentId"), req.Decision, req.Notes, actor)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// --- audit ---

func (h *handlers) listAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditLog.ListByRecord(r.Context(),
		chi.URLParam(r, "table"), chi.URLParam(r, "recordId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
