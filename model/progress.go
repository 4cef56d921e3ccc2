package model

import "time"

// Participant progress status constants.
const (
	ProgressStatusActive    = "active"
	ProgressStatusCompleted = "completed"
	ProgressStatusWithdrawn = "withdrawn"
	ProgressStatusOnHold    = "on_hold"
)

// ParticipantProgress tracks a single participant's position within a
// workflow. CurrentStageID always belongs to WorkflowID, and the status only
// becomes "completed" when the participant has satisfied the required
// requirements of the maximum-order stage.
type ParticipantProgress struct {
	ID             string     `json:"id"`
	ParticipantID  string     `json:"participant_id"`
	WorkflowID     string     `json:"workflow_id"`
	CurrentStageID string     `json:"current_stage_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Version        int        `json:"version"`
}

// DaysInCurrentStage returns the whole number of days since the participant
// entered the current stage.
func (p *ParticipantProgress) DaysInCurrentStage(now time.Time) int {
	return int(now.Sub(p.StageEnteredAt).Hours() / 24)
}

// RequirementCompletion links a participant's progress to a satisfied
// requirement. At most one completion exists per (progress, requirement)
// pair; re-completion is idempotent.
type RequirementCompletion struct {
	ID            string    `json:"id"`
	ProgressID    string    `json:"progress_id"`
	RequirementID string    `json:"requirement_id"`
	DocumentID    string    `json:"document_id,omitempty"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	CompletedAt   time.Time `json:"completed_at"`
}

// MissingRequirement identifies an unsatisfied required requirement of the
// current stage.
type MissingRequirement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Evaluation is the result of evaluating a participant's advancement
// readiness. Computing it has no side effects.
type Evaluation struct {
	ProgressID string               `json:"progress_id"`
	StageID    string               `json:"stage_id"`
	Satisfied  bool                 `json:"satisfied"`
	Missing    []MissingRequirement `json:"missing,omitempty"`
}

// MissingNames returns the names of the missing requirements.
func (e Evaluation) MissingNames() []string {
	names := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		names = append(names, m.Name)
	}
	return names
}

// HasMissingOfKind reports whether any missing requirement has the given kind.
func (e Evaluation) HasMissingOfKind(kind string) bool {
	for _, m := range e.Missing {
		if m.Kind == kind {
			return true
		}
	}
	return false
}
