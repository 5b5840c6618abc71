package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/dateutil"
	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/storage"
)

// DefaultGracePeriod is how long an execution may stay pending past its
// scheduled time before it is reclassified as missed.
const DefaultGracePeriod = 2 * time.Hour

// MissedDetector reclassifies stale pending executions. The transition is
// one-way: a missed execution never returns to pending. It runs before the
// escalator in a reconciliation pass so a reminder is never issued for an
// execution being marked missed in the same pass.
type MissedDetector struct {
	logger *zap.Logger
	store  storage.Store
	grace  time.Duration
	loc    *time.Location
}

// NewMissedDetector creates a detector with the given grace period; zero or
// negative falls back to the default.
func NewMissedDetector(store storage.Store, grace time.Duration, loc *time.Location, logger *zap.Logger) *MissedDetector {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &MissedDetector{
		logger: logger.Named("missed-detector"),
		store:  store,
		grace:  grace,
		loc:    loc,
	}
}

// Reconcile marks every pending execution more than the grace period past its
// scheduled instant as missed and returns the transitioned executions.
func (d *MissedDetector) Reconcile(ctx context.Context, now time.Time) ([]model.Execution, error) {
	executions, err := d.store.LoadExecutions(ctx, nil)
	if err != nil {
		return nil, err
	}

	var missed []model.Execution
	for i := range executions {
		exec := &executions[i]
		if exec.Status != model.ExecutionStatusPending {
			continue
		}

		scheduledAt, err := dateutil.Combine(exec.Date, exec.ScheduledTime, d.loc)
		if err != nil {
			d.logger.Warn("Skipping execution with unparsable schedule",
				zap.String("execution_id", exec.ID),
				zap.Error(err))
			continue
		}

		if now.Sub(scheduledAt) > d.grace {
			exec.MarkMissed()
			missed = append(missed, *exec)
			d.logger.Info("Marked execution missed",
				zap.String("execution_id", exec.ID),
				zap.String("task_id", exec.TaskID),
				zap.String("date", exec.Date),
				zap.String("scheduled_time", exec.ScheduledTime))
		}
	}

	if len(missed) == 0 {
		return nil, nil
	}

	if err := d.store.SaveExecutions(ctx, executions); err != nil {
		return nil, err
	}
	return missed, nil
}
