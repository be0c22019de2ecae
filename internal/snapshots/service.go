package snapshots

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

// Repository persists snapshots and their payload.
type Repository interface {
	Insert(ctx context.Context, snap Snapshot) error
	List(ctx context.Context, filters ListFilters) ([]Snapshot, int, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	SavePayload(ctx context.Context, id string, payload *profitability.Result, errMsg string) error
}

// Reporter computes profitability reports.
type Reporter interface {
	Report(ctx context.Context, q profitability.Query) (profitability.Result, error)
}

// Enqueuer hands a pending snapshot to the background worker.
type Enqueuer interface {
	EnqueueSnapshot(ctx context.Context, snapshotID string) error
}

// Service coordinates snapshot triggering and processing.
type Service struct {
	repo     Repository
	reporter Reporter
	queue    Enqueuer
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the service. queue may be nil, leaving snapshots pending.
func NewService(repo Repository, reporter Reporter, queue Enqueuer, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reporter: reporter, queue: queue, loc: loc, logger: logger, now: time.Now}
}

// Trigger inserts a pending snapshot and enqueues its computation.
func (s *Service) Trigger(ctx context.Context, req Request) (Snapshot, error) {
	if err := req.Validate(); err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	snap := Snapshot{
		ID:        uuid.NewString(),
		Month:     strings.TrimSpace(req.Month),
		GroupBy:   strings.ToLower(strings.TrimSpace(req.GroupBy)),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	if s.queue != nil {
		if err := s.queue.EnqueueSnapshot(ctx, snap.ID); err != nil {
			s.logger.Error("enqueue snapshot", slog.String("snapshot_id", snap.ID), slog.Any("error", err))
			return snap, err
		}
	}
	return snap, nil
}

// List fetches latest snapshots with pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Snapshot, shared.Pagination, error) {
	page := shared.NewPagination(filters.Page, filters.Limit, 0)
	filters.Page, filters.Limit = page.Page, page.PerPage
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// Get returns a snapshot with its payload.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	return s.repo.Get(ctx, id)
}

// Process computes the month report and persists it as the snapshot payload.
func (s *Service) Process(ctx context.Context, id string) error {
	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if snap.Status == StatusReady {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, snap.ID, StatusInProgress); err != nil {
		return err
	}
	res, err := s.compute(ctx, snap)
	if err != nil {
		_ = s.repo.SavePayload(ctx, snap.ID, nil, err.Error())
		_ = s.repo.UpdateStatus(ctx, snap.ID, StatusFailed)
		return err
	}
	if err := s.repo.SavePayload(ctx, snap.ID, &res, ""); err != nil {
		_ = s.repo.UpdateStatus(ctx, snap.ID, StatusFailed)
		return err
	}
	return s.repo.UpdateStatus(ctx, snap.ID, StatusReady)
}

func (s *Service) compute(ctx context.Context, snap Snapshot) (profitability.Result, error) {
	r, err := profitability.ParseMonth(snap.Month, s.loc)
	if err != nil {
		return profitability.Result{}, err
	}
	return s.reporter.Report(ctx, profitability.Query{
		Filter:  profitability.Filter{Range: r},
		GroupBy: snap.GroupBy,
		Rank:    snap.GroupBy != "",
	})
}
