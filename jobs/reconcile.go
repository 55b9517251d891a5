package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
)

const (
	// TaskReconcileMarketplace reconciles one marketplace.
	TaskReconcileMarketplace = "catalog:reconcile"
	// TaskReconcileAll reconciles every marketplace.
	TaskReconcileAll = "catalog:reconcile_all"
)

// ReconcilePayload names the marketplace to reconcile.
type ReconcilePayload struct {
	Marketplace string `json:"marketplace"`
}

// NewReconcileTask constructs a single-marketplace reconcile task.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	if _, err := catalog.ParseMarketplace(payload.Marketplace); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileMarketplace, data), nil
}

// NewReconcileAllTask constructs a full-sweep task.
func NewReconcileAllTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileAll, nil)
}

// NotifierPort delivers operator notifications on job failures.
type NotifierPort interface {
	Notify(ctx context.Context, message string)
}

// ReconcileJob runs reconciliation passes from the queue.
type ReconcileJob struct {
	Runner   *catalog.Runner
	Logger   *slog.Logger
	Notifier NotifierPort
}

// NewReconcileJob wires dependencies for the reconcile handlers.
func NewReconcileJob(runner *catalog.Runner, logger *slog.Logger, notifier NotifierPort) *ReconcileJob {
	return &ReconcileJob{Runner: runner, Logger: logger, Notifier: notifier}
}

// Handle processes TaskReconcileMarketplace tasks.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	m, err := catalog.ParseMarketplace(payload.Marketplace)
	if err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("marketplace", payload.Marketplace))
	started := time.Now()
	summary, err := j.Runner.ReconcileMarketplace(ctx, m)
	if err != nil {
		logger.Error("reconcile task failed", slog.Any("error", err))
		j.notify(ctx, "reconcile "+payload.Marketplace+" failed: "+err.Error())
		return err
	}
	logger.Info("reconcile task finished",
		slog.String("run_id", summary.RunID),
		slog.Int("changed", summary.Changed),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

// HandleAll processes TaskReconcileAll tasks.
func (j *ReconcileJob) HandleAll(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("reconcile: handler not configured")
	}
	started := time.Now()
	summaries, err := j.Runner.ReconcileAll(ctx)
	if err != nil {
		j.logger().Error("full sweep failed", slog.Any("error", err))
		j.notify(ctx, "full reconcile sweep failed: "+err.Error())
		return err
	}
	changed := 0
	for _, s := range summaries {
		changed += s.Changed
	}
	j.logger().Info("full sweep finished",
		slog.Int("marketplaces", len(summaries)),
		slog.Int("changed", changed),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconcileMarketplace))
	}
	return slog.Default().With(slog.String("job", TaskReconcileMarketplace))
}

func (j *ReconcileJob) notify(ctx context.Context, msg string) {
	if j.Notifier != nil {
		j.Notifier.Notify(ctx, msg)
	}
}
