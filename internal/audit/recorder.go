package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/model"
)

// Metrics is the subset of instrumentation the recorder reports to.
type Metrics interface {
	RecordAuditWrite(action, table string)
	RecordAuditWriteFailure()
}

// Recorder computes diffs and appends audit entries. It never propagates
// persistence failures: the triggering mutation has already committed and
// must not be rolled back because of an audit failure.
type Recorder struct {
	store   Store
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time
}

// NewRecorder creates a Recorder. metrics may be nil.
func NewRecorder(store Store, logger *zap.Logger, metrics Metrics) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record computes the field diff for a mutation and appends an audit entry.
// Update actions with an empty diff are not recorded. Persistence failures
// are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, action, tableName, recordID string, before, after map[string]any, actor model.Actor) {
	diff := ComputeDiff(action, before, after)
	if action == model.AuditActionUpdate && len(diff) == 0 {
		return
	}

	entry := model.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		TableName: tableName,
		RecordID:  recordID,
		Before:    cloneSnapshot(before),
		After:     cloneSnapshot(after),
		Diff:      diff,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		CreatedAt: r.now().UTC(),
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("table", tableName),
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordAuditWriteFailure()
		}
		return
	}

	if r.metrics != nil {
		r.metrics.RecordAuditWrite(action, tableName)
	}
}
