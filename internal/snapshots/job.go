package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/explotacion/internal/jobs"
	"github.com/odyssey-erp/explotacion/jobs"
)

// Job processes profitability snapshot tasks.
type Job struct {
	service *Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewJob constructs a job handler.
func NewJob(service *Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *Job {
	return &Job{service: service, metrics: metrics, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.SnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.SnapshotID == "" {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(jobs.TaskProfitabilitySnapshot)
	err := tracker.End(j.service.Process(ctx, payload.SnapshotID))
	if err != nil {
		if j.logger != nil {
			j.logger.Error("profitability snapshot", slog.String("snapshot_id", payload.SnapshotID), slog.Any("error", err))
		}
		if errors.Is(err, ErrSnapshotNotFound) {
			return asynq.SkipRetry
		}
		return err
	}
	return nil
}
