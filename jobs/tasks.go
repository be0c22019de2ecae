package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProfitabilitySnapshot computes and persists a month snapshot.
	TaskProfitabilitySnapshot = "profitability:snapshot"
	// TaskProfitabilityWarmup precomputes the cached reports of the current month.
	TaskProfitabilityWarmup = "profitability:warmup"
	// TaskIdempotencyCleanup purges expired Idempotency-Key claims.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// SnapshotPayload identifies the snapshot to process.
type SnapshotPayload struct {
	SnapshotID string `json:"snapshot_id"`
}

// WarmupPayload scopes a warmup run. Empty fields fall back to the current month
// and the default groupings.
type WarmupPayload struct {
	Month   string   `json:"month,omitempty"`
	GroupBy []string `json:"group_by,omitempty"`
}

// NewSnapshotTask constructs an Asynq task.
func NewSnapshotTask(payload SnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfitabilitySnapshot, data), nil
}

// NewWarmupTask constructs an Asynq task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfitabilityWarmup, data), nil
}

// RedisOpt converts go-redis options into the asynq connection settings so the
// cache and the queue share one REDIS_ADDR.
func RedisOpt(opts *redis.Options) asynq.RedisClientOpt {
	if opts == nil {
		return asynq.RedisClientOpt{}
	}
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}
