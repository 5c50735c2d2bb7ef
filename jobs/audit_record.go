package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-auth/atlas-auth/internal/audit"
	jobmetrics "github.com/atlas-auth/atlas-auth/internal/jobs"
)

// AuditRecordJob persists queued audit events.
type AuditRecordJob struct {
	Store   *audit.Store
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the audit persistence handler.
func NewAuditRecordJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Store: audit.NewStore(pool), Logger: logger, Metrics: metrics}
}

// Handle writes one audit event to the store.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	var event audit.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	if event.Kind == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(JobAuditRecord)
	err := j.Store.Insert(ctx, event)
	if err = tracker.End(err); err != nil {
		if j.Logger != nil {
			j.Logger.Error("persist audit event", slog.String("kind", event.Kind), slog.Any("error", err))
		}
		return err
	}
	return nil
}

func (j *AuditRecordJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

// AuditPruneJob trims audit events past the retention window.
type AuditPruneJob struct {
	Store     *audit.Store
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Retention time.Duration
	clock     func() time.Time
}

// NewAuditPruneJob initialises the retention handler.
func NewAuditPruneJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, retention time.Duration) *AuditPruneJob {
	return &AuditPruneJob{
		Store:     audit.NewStore(pool),
		Logger:    logger,
		Metrics:   metrics,
		Retention: retention,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle removes events older than the retention window.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit prune: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	tracker := j.jobMetrics().Track(JobAuditPrune)
	removed, err := j.Store.Prune(ctx, retention, j.clock())
	if err = tracker.End(err); err != nil {
		return err
	}
	if j.Logger != nil && removed > 0 {
		j.Logger.Info("audit prune", slog.Int64("removed", removed))
	}
	return nil
}

func (j *AuditPruneJob) jobMetrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
