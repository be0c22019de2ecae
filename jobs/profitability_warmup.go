package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/explotacion/internal/jobs"
	"github.com/odyssey-erp/explotacion/internal/profitability"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DefaultWarmupGroups are the breakdowns warmed when the payload names none.
var DefaultWarmupGroups = []string{"", "space", "salesperson", "client", "vertical"}

// Reporter computes (and caches) profitability reports.
type Reporter interface {
	Report(ctx context.Context, q profitability.Query) (profitability.Result, error)
}

// WarmupJob pre-populates the report cache for the current month.
type WarmupJob struct {
	Reporter Reporter
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(reporter Reporter, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	if loc == nil {
		loc = time.UTC
	}
	return &WarmupJob{
		Reporter: reporter,
		Location: loc,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle processes profitability warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reporter == nil {
		return errors.New("profitability warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	r, err := j.period(payload.Month)
	if err != nil {
		return asynq.SkipRetry
	}
	groups := payload.GroupBy
	if len(groups) == 0 {
		groups = DefaultWarmupGroups
	}

	tracker := j.metrics().Track(TaskProfitabilityWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("month", profitability.MonthKey(r.From)))
	logger.Info("starting profitability warmup")
	started := j.now()

	for _, group := range groups {
		scopeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := j.Reporter.Report(scopeCtx, profitability.Query{
			Filter:  profitability.Filter{Range: r},
			GroupBy: group,
			Rank:    group != "",
		})
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm report", slog.String("group_by", group), slog.Any("error", err))
			return resultErr
		}
		j.metrics().AddWarmedReports(group, 1)
	}

	logger.Info("completed profitability warmup", slog.Int("reports", len(groups)), slog.Duration("duration", time.Since(started)))
	return resultErr
}

func (j *WarmupJob) period(month string) (profitability.DateRange, error) {
	if month == "" {
		return profitability.MonthRange(j.now().In(j.Location)), nil
	}
	return profitability.ParseMonth(month, j.Location)
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProfitabilityWarmup))
	}
	return slog.Default().With(slog.String("job", TaskProfitabilityWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *WarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
