package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/dateutil"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/storage"
)

// DefaultRetentionDays is how long executions are kept before the advisory
// purge drops them.
const DefaultRetentionDays = 30

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Coordinator orchestrates materialization, missed detection and escalation
// on the three lifecycle triggers: cold start, date rollover, and foreground
// resume. It owns the timer handles outright, so stopping the coordinator
// stops every periodic trigger in this process lifetime.
type Coordinator struct {
	logger       *zap.Logger
	store        storage.Store
	dispatcher   notify.Dispatcher
	materializer *Materializer
	detector     *MissedDetector
	escalator    *Escalator
	loc          *time.Location
	retention    int
	now          func() time.Time

	// mu serializes passes: materializer, detector and escalator all
	// read-modify-write the execution collection, and a lost update would
	// break the idempotence and monotonicity guarantees.
	mu       sync.Mutex
	cron     *cron.Cron
	lastDate string
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	GracePeriod   time.Duration
	RetentionDays int
	Location      *time.Location
	Now           func() time.Time
}

// NewCoordinator wires the three engine components over one store and
// dispatcher.
func NewCoordinator(store storage.Store, dispatcher notify.Dispatcher, opts CoordinatorOptions, logger *zap.Logger) *Coordinator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cl := &cronLogger{logger: logger.Named("cron")}
	return &Coordinator{
		logger:       logger.Named("coordinator"),
		store:        store,
		dispatcher:   dispatcher,
		materializer: NewMaterializer(store, dispatcher, opts.Location, logger),
		detector:     NewMissedDetector(store, opts.GracePeriod, opts.Location, logger),
		escalator:    NewEscalator(store, dispatcher, opts.Location, logger),
		loc:          opts.Location,
		retention:    opts.RetentionDays,
		now:          opts.Now,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithChain(cron.Recover(cl)),
		),
	}
}

// Start runs the cold-start pass and registers the periodic triggers: an
// escalation tick every minute and a date-rollover check every hour. The
// retention purge runs once here; it is advisory cleanup and its failures are
// logged, never surfaced.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lastDate = dateutil.FormatDate(c.now().In(c.loc))

	if err := c.RunPass(ctx); err != nil {
		return fmt.Errorf("cold start pass: %w", err)
	}

	c.purge(ctx)

	if _, err := c.cron.AddFunc("@every 1m", func() {
		if err := c.reconcile(context.Background()); err != nil {
			c.logger.Error("Escalation tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to add escalation tick: %w", err)
	}

	if _, err := c.cron.AddFunc("@hourly", func() {
		c.checkRollover(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to add rollover check: %w", err)
	}

	c.cron.Start()
	c.logger.Info("Coordinator started",
		zap.String("date", c.lastDate),
		zap.Int("retention_days", c.retention))
	return nil
}

// Stop releases the timer handles.
func (c *Coordinator) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.logger.Info("Coordinator stopped")
}

// Resume is the app-foreground trigger: re-derive state from the wall clock
// after an unknown suspension, rolling the date over first if it changed.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.checkRollover(ctx)
	return c.RunPass(ctx)
}

// RunPass executes one full reconciliation pass: materialize today, sweep
// missed executions, then one escalation tick. Order matters: an execution
// must exist before it can be reconciled or escalated, and the missed sweep
// runs before escalation so the two never act on the same execution in one
// pass.
func (c *Coordinator) RunPass(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	today := dateutil.FormatDate(now.In(c.loc))

	if _, err := c.materializer.Materialize(ctx, today); err != nil {
		if !storageFailure(err) {
			return err
		}
		c.logger.Error("Materialization failed, continuing pass", zap.Error(err))
	}

	if _, err := c.detector.Reconcile(ctx, now); err != nil {
		c.logger.Error("Missed sweep failed, continuing pass", zap.Error(err))
	}

	if _, err := c.escalator.Tick(ctx, now); err != nil {
		c.logger.Error("Escalation tick failed", zap.Error(err))
	}

	return nil
}

// reconcile is the per-minute trigger: missed sweep then escalation, no
// materialization (today's executions already exist after the start pass).
func (c *Coordinator) reconcile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, err := c.detector.Reconcile(ctx, now); err != nil {
		c.logger.Error("Missed sweep failed, continuing pass", zap.Error(err))
	}
	_, err := c.escalator.Tick(ctx, now)
	return err
}

// checkRollover detects a date change and, when one happened, runs a full
// pass plus next-day look-ahead so reminders are ready before the user opens
// the app.
func (c *Coordinator) checkRollover(ctx context.Context) {
	today := dateutil.FormatDate(c.now().In(c.loc))

	c.mu.Lock()
	changed := today != c.lastDate
	if changed {
		c.lastDate = today
	}
	c.mu.Unlock()

	if !changed {
		return
	}

	c.logger.Info("Date rollover detected", zap.String("date", today))

	if err := c.RunPass(ctx); err != nil {
		c.logger.Error("Rollover pass failed", zap.Error(err))
	}

	tomorrow, err := dateutil.AddDays(today, 1, c.loc)
	if err != nil {
		c.logger.Error("Failed to compute next day", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.materializer.Materialize(ctx, tomorrow); err != nil {
		c.logger.Error("Next-day materialization failed",
			zap.String("date", tomorrow),
			zap.Error(err))
	}
}

// purge drops executions older than the retention window. The current date
// is never purged. Failures are logged and swallowed.
func (c *Coordinator) purge(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().In(c.loc)
	today := dateutil.FormatDate(now)
	cutoff := dateutil.FormatDate(now.AddDate(0, 0, -c.retention))

	executions, err := c.store.LoadExecutions(ctx, nil)
	if err != nil {
		c.logger.Warn("Retention purge skipped", zap.Error(err))
		return
	}

	kept := executions[:0]
	for _, exec := range executions {
		if exec.Date >= cutoff || exec.Date == today {
			kept = append(kept, exec)
		}
	}

	dropped := len(executions) - len(kept)
	if dropped == 0 {
		return
	}

	if err := c.store.SaveExecutions(ctx, kept); err != nil {
		c.logger.Warn("Retention purge failed", zap.Error(err))
		return
	}

	c.logger.Info("Purged old executions",
		zap.String("cutoff", cutoff),
		zap.Int("dropped", dropped))
}

// RescheduleAll cancels every task's scheduled notifications at the
// dispatcher and re-registers the initial schedule for active tasks. Used
// when notification permission is re-granted or the dispatcher's entries are
// suspected stale.
func (c *Coordinator) RescheduleAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := c.store.LoadTasks(ctx)
	if err != nil {
		return err
	}

	for i := range tasks {
		task := &tasks[i]
		if err := c.dispatcher.Cancel(ctx, task.ID); err != nil {
			c.logger.Warn("Failed to cancel notifications",
				zap.String("task_id", task.ID),
				zap.Error(err))
		}
	}

	for i := range tasks {
		task := &tasks[i]
		if !task.IsActive {
			continue
		}
		if _, err := c.dispatcher.ScheduleInitial(ctx, task); err != nil {
			c.logger.Warn("Failed to reschedule initial notifications",
				zap.String("task_id", task.ID),
				zap.Error(err))
		}
	}

	c.logger.Info("Rescheduled all notifications", zap.Int("tasks", len(tasks)))
	return nil
}

// Materializer exposes the underlying materializer for callers that create
// executions outside a lifecycle trigger (task creation).
func (c *Coordinator) Materializer() *Materializer {
	return c.materializer
}
