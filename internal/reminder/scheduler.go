// Package reminder runs the stalled-participant scan: on a fixed interval it
// enumerates active progress records and asks the notification collaborator
// to nudge participants stuck past the stall threshold with unmet document
// requirements. Each run is bounded and failures are isolated per
// participant.
package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/model"
)

// dedupWindow bounds how often one participant is reminded. State is
// process-local; a restart may re-remind once.
const dedupWindow = 24 * time.Hour

// Reminder is the request sent to the notification collaborator.
type Reminder struct {
	ParticipantID string   `json:"participant_id"`
	ProgressID    string   `json:"progress_id"`
	WorkflowID    string   `json:"workflow_id"`
	StageID       string   `json:"stage_id"`
	Missing       []string `json:"missing"`
	DaysStalled   int      `json:"days_stalled"`
}

// Notifier is the external notification collaborator. It owns delivery
// retries; the scheduler only logs failures and moves on.
type Notifier interface {
	SendReminder(ctx context.Context, reminder Reminder) error
}

// LogNotifier writes reminders to the log instead of delivering them. Used
// when no notification collaborator is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

// SendReminder logs the reminder.
func (n LogNotifier) SendReminder(_ context.Context, r Reminder) error {
	n.Logger.Info("reminder dispatch",
		zap.String("participant_id", r.ParticipantID),
		zap.String("progress_id", r.ProgressID),
		zap.Strings("missing", r.Missing),
		zap.Int("days_stalled", r.DaysStalled),
	)
	return nil
}

// ProgressSource lists the active progress records to scan.
type ProgressSource interface {
	ListActive(ctx context.Context) ([]model.ParticipantProgress, error)
}

// Evaluator computes advancement readiness without side effects.
type Evaluator interface {
	EvaluateAdvancement(ctx context.Context, progressID string) (model.Evaluation, error)
}

// Metrics is the subset of instrumentation the scheduler reports to.
type Metrics interface {
	RecordReminderSend(status string)
	RecordReminderSkipped()
	ObserveReminderTick(d time.Duration)
}

// Scheduler periodically scans for stalled participants.
type Scheduler struct {
	progress ProgressSource
	eval     Evaluator
	notifier Notifier
	cfg      config.ReminderConfig
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time

	lastSent map[string]time.Time // progress ID -> last reminder time
}

// NewScheduler creates a reminder scheduler. metrics may be nil.
func NewScheduler(progress ProgressSource, eval Evaluator, notifier Notifier, cfg config.ReminderConfig, metrics Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		progress: progress,
		eval:     eval,
		notifier: notifier,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Run ticks until the context is cancelled. Call it from its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("reminder scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("stall_threshold_days", s.cfg.StallThresholdDays),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs a single bounded scan. A failed participant never aborts the scan
// for the others.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	active, err := s.progress.ListActive(ctx)
	if err != nil {
		s.logger.Warn("reminder scan failed to list active progress", zap.Error(err))
		return
	}

	for _, p := range active {
		s.scanOne(ctx, p)
	}

	if s.metrics != nil {
		s.metrics.ObserveReminderTick(time.Since(start))
	}
}

func (s *Scheduler) scanOne(ctx context.Context, p model.ParticipantProgress) {
	now := s.now()
	days := p.DaysInCurrentStage(now)
	if days <= s.cfg.StallThresholdDays {
		return
	}

	if last, ok := s.lastSent[p.ID]; ok && now.Sub(last) < dedupWindow {
		if s.metrics != nil {
			s.metrics.RecordReminderSkipped()
		}
		return
	}

	eval, err := s.eval.EvaluateAdvancement(ctx, p.ID)
	if err != nil {
		s.logger.Warn("reminder evaluation failed",
			zap.String("progress_id", p.ID),
			zap.String("participant_id", p.ParticipantID),
			zap.Error(err),
		)
		return
	}
	if eval.Satisfied || !eval.HasMissingOfKind(model.RequirementKindDocument) {
		return
	}

	reminder := Reminder{
		ParticipantID: p.ParticipantID,
		ProgressID:    p.ID,
		WorkflowID:    p.WorkflowID,
		StageID:       p.CurrentStageID,
		Missing:       eval.MissingNames(),
		DaysStalled:   days,
	}
	if err := s.notifier.SendReminder(ctx, reminder); err != nil {
		s.logger.Warn("reminder send failed",
			zap.String("progress_id", p.ID),
			zap.String("participant_id", p.ParticipantID),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.RecordReminderSend("failure")
		}
		return
	}

	s.lastSent[p.ID] = now
	if s.metrics != nil {
		s.metrics.RecordReminderSend("success")
	}
	s.logger.Info("reminder sent",
		zap.String("progress_id", p.ID),
		zap.String("participant_id", p.ParticipantID),
		zap.Int("days_stalled", days),
		zap.Strings("missing", reminder.Missing),
	)
}
