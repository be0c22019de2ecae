package profitability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Store is the read side of the record store plus the adjustment relation.
type Store interface {
	LoadSnapshot(ctx context.Context, r DateRange) (Snapshot, error)
	LoadOrderSnapshot(ctx context.Context, orderID string) (Snapshot, error)
	ListAdjustments(ctx context.Context, orderID string) ([]Adjustment, error)
	InsertAdjustment(ctx context.Context, adj Adjustment) error
	ListBillingAdjustments(ctx context.Context, orderID string) ([]BillingAdjustment, error)
	InsertBillingAdjustment(ctx context.Context, adj BillingAdjustment) error
}

// Recorder receives engine instrumentation.
type Recorder interface {
	ObserveAggregation(d time.Duration, orders int)
	AddOrphanAdjustments(n int)
}

// Query is one report request.
type Query struct {
	Filter  Filter
	GroupBy string
	Rank    bool
}

// ErrInvalidAdjustment marks an adjustment without concept or amount.
var ErrInvalidAdjustment = errors.New("profitability: invalid adjustment")

// computeTimeout bounds a shared report computation once it no longer
// follows the caller that started it.
const computeTimeout = 2 * time.Minute

// Service loads snapshots, runs the engine and caches the reports.
type Service struct {
	store   Store
	cache   *Cache
	metrics Recorder
	loc     *time.Location
	logger  *slog.Logger
	flight  singleflight.Group
}

// NewService wires the engine with its collaborators. cache and metrics may
// be nil; loc is the business calendar used for order dates and defaults to UTC.
func NewService(store Store, cache *Cache, metrics Recorder, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, cache: cache, metrics: metrics, loc: loc, logger: logger}
}

// Report aggregates the period described by q.
func (s *Service) Report(ctx context.Context, q Query) (Result, error) {
	groupBy, err := GroupKeyByName(q.GroupBy)
	if err != nil {
		return Result{}, err
	}
	if q.Filter.Range.From.IsZero() || q.Filter.Range.To.Before(q.Filter.Range.From) {
		return Result{}, ErrInvalidRange
	}
	key, err := s.cache.BuildKey(ctx, keyReport(q))
	if err != nil {
		return Result{}, err
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		// Detached so a leader that goes away does not fail the joined waiters.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		var out Result
		err := s.cache.FetchJSON(flightCtx, key, &out, func(ctx context.Context) (any, error) {
			return s.compute(ctx, q, groupBy)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

func (s *Service) compute(ctx context.Context, q Query, groupBy GroupKey) (Result, error) {
	snapshot, err := s.store.LoadSnapshot(ctx, q.Filter.Range)
	if err != nil {
		return Result{}, fmt.Errorf("load snapshot: %w", err)
	}
	start := time.Now()
	res := Aggregate(snapshot, q.Filter, groupBy)
	if q.Rank {
		res.Groups = RankByMargin(res.Groups)
	}
	if s.metrics != nil {
		s.metrics.ObserveAggregation(time.Since(start), res.Totals.Orders)
		s.metrics.AddOrphanAdjustments(res.Orphans)
	}
	if res.Orphans > 0 {
		s.logger.Warn("orphan adjustments dropped", slog.Int("count", res.Orphans))
	}
	return res, nil
}

// Evaluate returns the service order and its profitability row regardless of status.
func (s *Service) Evaluate(ctx context.Context, orderID string) (ServiceOrder, OrderResult, error) {
	snapshot, err := s.store.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return ServiceOrder{}, OrderResult{}, err
	}
	for _, order := range snapshot.Orders {
		if order.ID == orderID {
			order.StartDate = order.StartDate.In(s.loc)
			order.EndDate = order.EndDate.In(s.loc)
			return order, NewIndex(snapshot).Evaluate(order), nil
		}
	}
	return ServiceOrder{}, OrderResult{}, ErrOrderNotFound
}

// Adjustments lists the manual external staff corrections of an order.
func (s *Service) Adjustments(ctx context.Context, orderID string) ([]Adjustment, error) {
	return s.store.ListAdjustments(ctx, orderID)
}

// AddAdjustment records a signed correction against an existing order and
// invalidates cached reports.
func (s *Service) AddAdjustment(ctx context.Context, orderID, concept string, amount float64) (Adjustment, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" || amount == 0 {
		return Adjustment{}, ErrInvalidAdjustment
	}
	snapshot, err := s.store.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return Adjustment{}, err
	}
	if len(snapshot.Orders) == 0 {
		return Adjustment{}, ErrOrderNotFound
	}
	adj := Adjustment{ID: uuid.NewString(), Order: orderID, Concept: concept, Delta: amount}
	if err := s.store.InsertAdjustment(ctx, adj); err != nil {
		return Adjustment{}, err
	}
	s.Invalidate(ctx)
	return adj, nil
}

// BillingAdjustments lists the manual corrections of the billed amount of an order.
func (s *Service) BillingAdjustments(ctx context.Context, orderID string) ([]BillingAdjustment, error) {
	return s.store.ListBillingAdjustments(ctx, orderID)
}

// AddBillingAdjustment records a signed correction of the gross billing of an
// existing order and invalidates cached reports.
func (s *Service) AddBillingAdjustment(ctx context.Context, orderID, concept string, amount float64) (BillingAdjustment, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" || amount == 0 {
		return BillingAdjustment{}, ErrInvalidAdjustment
	}
	snapshot, err := s.store.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return BillingAdjustment{}, err
	}
	if len(snapshot.Orders) == 0 {
		return BillingAdjustment{}, ErrOrderNotFound
	}
	adj := BillingAdjustment{ID: uuid.NewString(), Order: orderID, Concept: concept, Amount: amount}
	if err := s.store.InsertBillingAdjustment(ctx, adj); err != nil {
		return BillingAdjustment{}, err
	}
	s.Invalidate(ctx)
	return adj, nil
}

// Invalidate bumps the cache version. Failures are logged, not returned.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("profitability cache bump failed", slog.Any("error", err))
	}
}
