package model

import "time"

// Document status constants. Approved and rejected are terminal; a further
// decision requires a new upload.
const (
	DocumentStatusPending  = "pending"
	DocumentStatusApproved = "approved"
	DocumentStatusRejected = "rejected"
)

// Decision values accepted by the document workflow.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Document is an uploaded file awaiting or carrying a decision. The
// requirement reference is optional; only documents linked to a requirement
// feed requirement completions on approval.
type Document struct {
	ID            string     `json:"id"`
	ParticipantID string     `json:"participant_id"`
	RequirementID string     `json:"requirement_id,omitempty"`
	FileName      string     `json:"file_name"`
	MimeType      string     `json:"mime_type"`
	URL           string     `json:"url"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	DecidedBy     string     `json:"decided_by,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	UploadedAt    time.Time  `json:"uploaded_at"`
}

// Decided reports whether the document has reached a terminal status.
func (d *Document) Decided() bool {
	return d.Status != DocumentStatusPending
}
