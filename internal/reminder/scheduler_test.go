package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/model"
)

type staticProgress struct {
	active []model.ParticipantProgress
}

func (s *staticProgress) ListActive(context.Context) ([]model.ParticipantProgress, error) {
	return s.active, nil
}

type staticEvaluator struct {
	evals map[string]model.Evaluation
	errs  map[string]error
}

func (s *staticEvaluator) EvaluateAdvancement(_ context.Context, progressID string) (model.Evaluation, error) {
	if err, ok := s.errs[progressID]; ok {
		return model.Evaluation{}, err
	}
	return s.evals[progressID], nil
}

type capturingNotifier struct {
	sent []Reminder
	err  error
}

func (n *capturingNotifier) SendReminder(_ context.Context, r Reminder) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, r)
	return nil
}

func testConfig() config.ReminderConfig {
	return config.ReminderConfig{
		Enabled:            true,
		Interval:           time.Hour,
		StallThresholdDays: 3,
		TickTimeout:        10 * time.Second,
	}
}

func stalledProgress(id string, days int, now time.Time) model.ParticipantProgress {
	return model.ParticipantProgress{
		ID:             id,
		ParticipantID:  "cand-" + id,
		WorkflowID:     "wf-onboarding",
		CurrentStageID: "st-intake",
		Status:         model.ProgressStatusActive,
		StageEnteredAt: now.Add(-time.Duration(days) * 24 * time.Hour),
	}
}

func missingDoc(progressID string) model.Evaluation {
	return model.Evaluation{
		ProgressID: progressID,
		StageID:    "st-intake",
		Missing: []model.MissingRequirement{
			{ID: "req-id-doc", Name: "ID Document", Kind: model.RequirementKindDocument},
		},
	}
}

func TestTick_remindsStalledParticipantWithMissingDocument(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{stalledProgress("p-1", 5, now)}}
	eval := &staticEvaluator{evals: map[string]model.Evaluation{"p-1": missingDoc("p-1")}}
	notifier := &capturingNotifier{}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(notifier.sent))
	}
	r := notifier.sent[0]
	if r.ParticipantID != "cand-p-1" || r.DaysStalled != 5 {
		t.Errorf("reminder = %+v", r)
	}
	if len(r.Missing) != 1 || r.Missing[0] != "ID Document" {
		t.Errorf("missing = %v", r.Missing)
	}
}

func TestTick_skipsBelowThreshold(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{stalledProgress("p-1", 2, now)}}
	eval := &staticEvaluator{evals: map[string]model.Evaluation{"p-1": missingDoc("p-1")}}
	notifier := &capturingNotifier{}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	if len(notifier.sent) != 0 {
		t.Errorf("sent = %d, want 0 below threshold", len(notifier.sent))
	}
}

func TestTick_skipsNonDocumentRequirements(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{stalledProgress("p-1", 5, now)}}
	eval := &staticEvaluator{evals: map[string]model.Evaluation{
		"p-1": {
			ProgressID: "p-1",
			Missing: []model.MissingRequirement{
				{ID: "req-quiz", Name: "Quiz", Kind: model.RequirementKindTraining},
			},
		},
	}}
	notifier := &capturingNotifier{}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	if len(notifier.sent) != 0 {
		t.Errorf("sent = %d, only missing documents warrant a reminder", len(notifier.sent))
	}
}

func TestTick_deduplicatesWithinWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{stalledProgress("p-1", 5, now)}}
	eval := &staticEvaluator{evals: map[string]model.Evaluation{"p-1": missingDoc("p-1")}}
	notifier := &capturingNotifier{}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(notifier.sent) != 1 {
		t.Errorf("sent = %d, second tick must be de-duplicated", len(notifier.sent))
	}

	// Past the window the reminder goes out again.
	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	s.Tick(context.Background())
	if len(notifier.sent) != 2 {
		t.Errorf("sent = %d, want 2 after the window elapsed", len(notifier.sent))
	}
}

func TestTick_isolatesPerParticipantFailures(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{
		stalledProgress("p-bad", 5, now),
		stalledProgress("p-good", 5, now),
	}}
	eval := &staticEvaluator{
		evals: map[string]model.Evaluation{"p-good": missingDoc("p-good")},
		errs:  map[string]error{"p-bad": errors.New("storage timeout")},
	}
	notifier := &capturingNotifier{}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	if len(notifier.sent) != 1 || notifier.sent[0].ProgressID != "p-good" {
		t.Errorf("sent = %+v, the failing participant must not abort the scan", notifier.sent)
	}
}

func TestTick_notifierFailureDoesNotMarkSent(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	progress := &staticProgress{active: []model.ParticipantProgress{stalledProgress("p-1", 5, now)}}
	eval := &staticEvaluator{evals: map[string]model.Evaluation{"p-1": missingDoc("p-1")}}
	notifier := &capturingNotifier{err: errors.New("smtp down")}

	s := NewScheduler(progress, eval, notifier, testConfig(), nil, zap.NewNop())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	// Delivery recovers; the participant is retried on the next tick.
	notifier.err = nil
	s.Tick(context.Background())

	if len(notifier.sent) != 1 {
		t.Errorf("sent = %d, failed send must be retried", len(notifier.sent))
	}
}
