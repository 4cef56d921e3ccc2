// Package progression owns the state machine for a participant's position
// within a workflow: it evaluates requirement satisfaction, performs guarded
// stage transitions, and records requirement completions. Advances are
// serialized per participant so a satisfied condition produces at most one
// transition under concurrent triggering.
package progression

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/catalog"
	"github.com/brightpath/stagegate/model"
)

// Transition triggers, used as the metric label and audit metadata.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// Audit table names.
const (
	tableProgress    = "participant_progress"
	tableCompletions = "requirement_completions"
)

// Auditor records committed mutations. Implementations are best-effort and
// never return errors.
type Auditor interface {
	Record(ctx context.Context, action, tableName, recordID string, before, after map[string]any, actor model.Actor)
}

// Announcer publishes a status-change event to the resource room identified
// by (resourceType, resourceID). Delivery is best-effort.
type Announcer interface {
	AnnounceStatus(resourceType, resourceID string, payload map[string]any)
}

// Metrics is the subset of instrumentation the engine reports to.
type Metrics interface {
	RecordStageAdvance(workflowID, trigger string)
	RecordProgressCompletion(workflowID string)
	RecordAdvanceConflict()
	ObserveEvaluationDuration(d time.Duration)
}

// Engine coordinates participant progression through workflow stages.
type Engine struct {
	catalog   catalog.Store
	store     Store
	auditor   Auditor
	announcer Announcer
	metrics   Metrics
	logger    *zap.Logger
	locks     participantLocks
	now       func() time.Time
}

// NewEngine creates a progression engine. announcer and metrics may be nil.
func NewEngine(cat catalog.Store, store Store, auditor Auditor, announcer Announcer, metrics Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		catalog:   cat,
		store:     store,
		auditor:   auditor,
		announcer: announcer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Start creates a progress record for a participant at the workflow's first
// stage. A participant can have at most one active progress at a time.
func (e *Engine) Start(ctx context.Context, participantID, workflowID string, actor model.Actor) (model.ParticipantProgress, error) {
	if participantID == "" {
		return model.ParticipantProgress{}, model.NewBadRequestError("participant id is required")
	}

	wf, err := e.catalog.GetWorkflow(ctx, workflowID)
	if err != nil {
		return model.ParticipantProgress{}, err
	}
	if len(wf.Stages) == 0 {
		return model.ParticipantProgress{}, model.NewValidationError(
			fmt.Sprintf("workflow %q has no stages", workflowID),
		)
	}

	existing, err := e.store.GetActiveByParticipant(ctx, participantID)
	if err == nil {
		return model.ParticipantProgress{}, model.NewConflictError(fmt.Sprintf(
			"participant %q already has active progress %q", participantID, existing.ID,
		))
	}
	if !model.IsCode(err, model.ErrNotFound) {
		return model.ParticipantProgress{}, err
	}

	initial := &wf.Stages[0]
	for i := range wf.Stages {
		if wf.Stages[i].Order < initial.Order {
			initial = &wf.Stages[i]
		}
	}

	now := e.now().UTC()
	p := model.ParticipantProgress{
		ID:             uuid.New().String(),
		ParticipantID:  participantID,
		WorkflowID:     workflowID,
		CurrentStageID: initial.ID,
		Status:         model.ProgressStatusActive,
		StartedAt:      now,
		StageEnteredAt: now,
		UpdatedAt:      now,
		Version:        1,
	}

	if err := e.store.CreateProgress(ctx, p); err != nil {
		return model.ParticipantProgress{}, err
	}
	e.auditor.Record(ctx, model.AuditActionCreate, tableProgress, p.ID, nil, progressSnapshot(p), actor)

	e.logger.Info("progress started",
		zap.String("progress_id", p.ID),
		zap.String("participant_id", participantID),
		zap.String("workflow_id", workflowID),
		zap.String("stage_id", initial.ID),
	)
	return p, nil
}

// Get retrieves a progress record by ID.
func (e *Engine) Get(ctx context.Context, progressID string) (model.ParticipantProgress, error) {
	return e.store.GetProgress(ctx, progressID)
}

// EvaluateAdvancement computes whether the participant's current stage is
// satisfied and, if not, which required requirements are missing. It has no
// side effects.
func (e *Engine) EvaluateAdvancement(ctx context.Context, progressID string) (model.Evaluation, error) {
	start := time.Now()
	p, err := e.store.GetProgress(ctx, progressID)
	if err != nil {
		return model.Evaluation{}, err
	}
	eval, err := e.evaluate(ctx, p)
	if err == nil && e.metrics != nil {
		e.metrics.ObserveEvaluationDuration(time.Since(start))
	}
	return eval, err
}

// evaluate computes the missing required requirements of the current stage.
func (e *Engine) evaluate(ctx context.Context, p model.ParticipantProgress) (model.Evaluation, error) {
	reqs, err := e.catalog.RequirementsByStage(ctx, p.CurrentStageID)
	if err != nil {
		return model.Evaluation{}, err
	}
	completions, err := e.store.CompletionsByProgress(ctx, p.ID)
	if err != nil {
		return model.Evaluation{}, err
	}

	done := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		done[c.RequirementID] = struct{}{}
	}

	var missing []model.MissingRequirement
	for _, r := range reqs {
		if !r.IsRequired {
			continue
		}
		if _, ok := done[r.ID]; ok {
			continue
		}
		missing = append(missing, model.MissingRequirement{ID: r.ID, Name: r.Name, Kind: r.Kind})
	}

	return model.Evaluation{
		ProgressID: p.ID,
		StageID:    p.CurrentStageID,
		Satisfied:  len(missing) == 0,
		Missing:    missing,
	}, nil
}

// Advance re-evaluates the current stage and, if satisfied, moves the
// participant to the next stage by order, or marks the progress completed at
// the last stage. Returns REQUIREMENTS_UNMET with the missing requirement
// names when the stage is not satisfied. Advancing an already-completed
// progress is a no-op success.
func (e *Engine) Advance(ctx context.Context, progressID string, actor model.Actor) (model.ParticipantProgress, error) {
	p, err := e.store.GetProgress(ctx, progressID)
	if err != nil {
		return model.ParticipantProgress{}, err
	}

	unlock := e.locks.lock(p.ParticipantID)
	defer unlock()

	return e.advance(ctx, progressID, actor, TriggerManual)
}

// advance performs the read-evaluate-write sequence. The caller must hold the
// participant's lock; the progress is re-read under it so a racing advance
// that already transitioned is observed.
func (e *Engine) advance(ctx context.Context, progressID string, actor model.Actor, trigger string) (model.ParticipantProgress, error) {
	p, err := e.store.GetProgress(ctx, progressID)
	if err != nil {
		return model.ParticipantProgress{}, err
	}

	if p.Status == model.ProgressStatusCompleted {
		return p, nil
	}
	if p.Status != model.ProgressStatusActive {
		return model.ParticipantProgress{}, model.NewValidationError(fmt.Sprintf(
			"progress %q is %s, not active", p.ID, p.Status,
		))
	}

	eval, err := e.evaluate(ctx, p)
	if err != nil {
		return model.ParticipantProgress{}, err
	}
	if !eval.Satisfied {
		return model.ParticipantProgress{}, model.NewRequirementsUnmetError(eval.MissingNames())
	}

	wf, err := e.catalog.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return model.ParticipantProgress{}, err
	}
	current := wf.StageByID(p.CurrentStageID)
	if current == nil {
		return model.ParticipantProgress{}, model.NewNotFoundError(fmt.Sprintf(
			"stage %q not found in workflow %q", p.CurrentStageID, p.WorkflowID,
		))
	}

	before := progressSnapshot(p)
	now := e.now().UTC()
	next := wf.NextStage(current.Order)
	if next == nil {
		p.Status = model.ProgressStatusCompleted
		p.CompletedAt = &now
	} else {
		p.CurrentStageID = next.ID
		p.StageEnteredAt = now
	}
	p.UpdatedAt = now

	if err := e.store.UpdateProgress(ctx, p); err != nil {
		if model.IsCode(err, model.ErrConflict) && e.metrics != nil {
			e.metrics.RecordAdvanceConflict()
		}
		return model.ParticipantProgress{}, err
	}
	p.Version++

	e.auditor.Record(ctx, model.AuditActionUpdate, tableProgress, p.ID, before, progressSnapshot(p), actor)

	if e.metrics != nil {
		e.metrics.RecordStageAdvance(p.WorkflowID, trigger)
		if next == nil {
			e.metrics.RecordProgressCompletion(p.WorkflowID)
		}
	}
	e.announceStatus(p)

	if next == nil {
		e.logger.Info("workflow completed",
			zap.String("progress_id", p.ID),
			zap.String("participant_id", p.ParticipantID),
			zap.String("workflow_id", p.WorkflowID),
		)
	} else {
		e.logger.Info("stage advanced",
			zap.String("progress_id", p.ID),
			zap.String("participant_id", p.ParticipantID),
			zap.String("workflow_id", p.WorkflowID),
			zap.String("from_stage_id", current.ID),
			zap.String("to_stage_id", next.ID),
			zap.String("trigger", trigger),
		)
	}
	return p, nil
}

// OnRequirementCompleted records a requirement completion for the
// participant's active progress and, when the current stage has auto-advance
// enabled, attempts the transition. A still-unsatisfied stage is not an
// error. Re-completing a requirement is a no-op.
func (e *Engine) OnRequirementCompleted(ctx context.Context, participantID, requirementID, documentID string, actor model.Actor) error {
	unlock := e.locks.lock(participantID)
	defer unlock()

	p, err := e.store.GetActiveByParticipant(ctx, participantID)
	if err != nil {
		return err
	}

	completion := model.RequirementCompletion{
		ID:            uuid.New().String(),
		ProgressID:    p.ID,
		RequirementID: requirementID,
		DocumentID:    documentID,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		CompletedAt:   e.now().UTC(),
	}
	inserted, err := e.store.AddCompletion(ctx, completion)
	if err != nil {
		return err
	}
	if inserted {
		e.auditor.Record(ctx, model.AuditActionCreate, tableCompletions, completion.ID,
			nil, completionSnapshot(completion), actor)
	}

	wf, err := e.catalog.GetWorkflow(ctx, p.WorkflowID)
	if err != nil {
		return err
	}
	current := wf.StageByID(p.CurrentStageID)
	if current == nil || !current.AutoAdvance {
		return nil
	}

	if _, err := e.advance(ctx, p.ID, actor, TriggerAuto); err != nil {
		if model.IsCode(err, model.ErrRequirementsUnmet) {
			return nil
		}
		return err
	}
	return nil
}

func (e *Engine) announceStatus(p model.ParticipantProgress) {
	if e.announcer == nil {
		return
	}
	e.announcer.AnnounceStatus(model.ResourceTypeParticipant, p.ParticipantID, map[string]any{
		"progressId":     p.ID,
		"participantId":  p.ParticipantID,
		"workflowId":     p.WorkflowID,
		"currentStageId": p.CurrentStageID,
		"status":         p.Status,
	})
}

// progressSnapshot renders a progress record as an audit snapshot.
func progressSnapshot(p model.ParticipantProgress) map[string]any {
	snap := map[string]any{
		"id":               p.ID,
		"participant_id":   p.ParticipantID,
		"workflow_id":      p.WorkflowID,
		"current_stage_id": p.CurrentStageID,
		"status":           p.Status,
		"started_at":       p.StartedAt.Format(time.RFC3339Nano),
		"stage_entered_at": p.StageEnteredAt.Format(time.RFC3339Nano),
		"updated_at":       p.UpdatedAt.Format(time.RFC3339Nano),
		"version":          p.Version,
	}
	if p.CompletedAt != nil {
		snap["completed_at"] = p.CompletedAt.Format(time.RFC3339Nano)
	}
	return snap
}

// completionSnapshot renders a requirement completion as an audit snapshot.
func completionSnapshot(c model.RequirementCompletion) map[string]any {
	return map[string]any{
		"id":             c.ID,
		"progress_id":    c.ProgressID,
		"requirement_id": c.RequirementID,
		"document_id":    c.DocumentID,
		"actor_id":       c.ActorID,
		"actor_name":     c.ActorName,
		"completed_at":   c.CompletedAt.Format(time.RFC3339Nano),
	}
}

// participantLocks serializes advances per participant.
type participantLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock acquires the participant's mutex, creating it on first use, and
// returns the unlock function.
func (l *participantLocks) lock(participantID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[participantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[participantID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
