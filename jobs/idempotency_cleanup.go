package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/explotacion/internal/jobs"
)

// DefaultKeyRetention keeps idempotency keys long enough to absorb client retries.
const DefaultKeyRetention = 72 * time.Hour

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupJob purges idempotency keys past their retention.
type CleanupJob struct {
	cleaner   KeyCleaner
	retention time.Duration
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewCleanupJob builds the handler. A non-positive retention uses DefaultKeyRetention.
func NewCleanupJob(cleaner KeyCleaner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *CleanupJob {
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &CleanupJob{cleaner: cleaner, retention: retention, logger: logger, metrics: metrics}
}

// Handle processes idempotency cleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.cleaner == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	removed, err := j.cleaner.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddPurgedKeys(removed)
	j.logger.Info("idempotency cleanup", slog.Int64("removed", removed), slog.Duration("retention", j.retention))
	return tracker.End(nil)
}
