package profitability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	snapshot    Snapshot
	loadErr     error
	loadCalls   int
	adjustments []Adjustment
	billing     []BillingAdjustment
}

func (m *mockStore) LoadSnapshot(ctx context.Context, r DateRange) (Snapshot, error) {
	m.loadCalls++
	if m.loadErr != nil {
		return Snapshot{}, m.loadErr
	}
	snap := m.snapshot
	for _, adj := range m.adjustments {
		snap.CostOrders = append(snap.CostOrders, adj)
	}
	snap.BillingAdjustments = append(snap.BillingAdjustments, m.billing...)
	return snap, nil
}

func (m *mockStore) LoadOrderSnapshot(ctx context.Context, orderID string) (Snapshot, error) {
	for _, o := range m.snapshot.Orders {
		if o.ID == orderID {
			snap := Snapshot{Orders: []ServiceOrder{o}}
			for _, c := range m.snapshot.CostOrders {
				if c.OrderID() == orderID {
					snap.CostOrders = append(snap.CostOrders, c)
				}
			}
			return snap, nil
		}
	}
	return Snapshot{}, ErrOrderNotFound
}

func (m *mockStore) ListAdjustments(ctx context.Context, orderID string) ([]Adjustment, error) {
	var out []Adjustment
	for _, a := range m.adjustments {
		if a.Order == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) InsertAdjustment(ctx context.Context, adj Adjustment) error {
	m.adjustments = append(m.adjustments, adj)
	return nil
}

func (m *mockStore) ListBillingAdjustments(ctx context.Context, orderID string) ([]BillingAdjustment, error) {
	var out []BillingAdjustment
	for _, a := range m.billing {
		if a.Order == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) InsertBillingAdjustment(ctx context.Context, adj BillingAdjustment) error {
	m.billing = append(m.billing, adj)
	return nil
}

// gatedStore blocks the first snapshot load until release is closed and
// remembers whether the load context was still alive afterwards.
type gatedStore struct {
	*mockStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	loads   atomic.Int32
	ctxErr  atomic.Value
}

func newGatedStore(snap Snapshot) *gatedStore {
	return &gatedStore{
		mockStore: &mockStore{snapshot: snap},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedStore) LoadSnapshot(ctx context.Context, r DateRange) (Snapshot, error) {
	g.loads.Add(1)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		g.ctxErr.Store(err)
		return Snapshot{}, err
	}
	return g.snapshot, nil
}

type recorder struct {
	aggregations int
	orphans      int
}

func (r *recorder) ObserveAggregation(time.Duration, int) { r.aggregations++ }
func (r *recorder) AddOrphanAdjustments(n int)            { r.orphans += n }

func newTestService(t *testing.T, store Store) (*Service, *recorder, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rec := &recorder{}
	svc := NewService(store, NewCache(client, time.Minute), rec, nil, nil)
	return svc, rec, func() {
		_ = client.Close()
		mr.Close()
	}
}

func marchQuery(t *testing.T) Query {
	return Query{Filter: Filter{Range: mustRange(t, day(2024, time.March, 1), day(2024, time.March, 31))}}
}

func TestReportCaches(t *testing.T) {
	store := &mockStore{snapshot: scenarioSnapshot()}
	svc, rec, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	first, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)
	second, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)

	assert.Equal(t, 1, store.loadCalls)
	assert.Equal(t, 1, rec.aggregations)
	assert.InDelta(t, 6880, second.Totals.Margin, tolerance)
	assert.Equal(t, first.Totals, second.Totals)
}

func TestAddAdjustmentInvalidatesCache(t *testing.T) {
	store := &mockStore{snapshot: scenarioSnapshot()}
	svc, _, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	before, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)

	adj, err := svc.AddAdjustment(ctx, "os-a", "late arrival", -20)
	require.NoError(t, err)
	assert.NotEmpty(t, adj.ID)

	after, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadCalls)
	assert.InDelta(t, before.Totals.Cost-20, after.Totals.Cost, tolerance)

	list, err := svc.Adjustments(ctx, "os-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddBillingAdjustmentRaisesRevenue(t *testing.T) {
	store := &mockStore{snapshot: scenarioSnapshot()}
	svc, _, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	before, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)

	adj, err := svc.AddBillingAdjustment(ctx, "os-a", "open bar", 500)
	require.NoError(t, err)
	assert.NotEmpty(t, adj.ID)

	after, err := svc.Report(ctx, marchQuery(t))
	require.NoError(t, err)
	// 500 extra gross less the 10% agency commission
	assert.InDelta(t, before.Totals.Revenue+450, after.Totals.Revenue, tolerance)

	list, err := svc.BillingAdjustments(ctx, "os-a")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.AddBillingAdjustment(ctx, "missing", "x", 1)
	require.ErrorIs(t, err, ErrOrderNotFound)
	_, err = svc.AddBillingAdjustment(ctx, "os-a", "x", 0)
	require.ErrorIs(t, err, ErrInvalidAdjustment)
}

func TestReportSurvivesLeaderCancellation(t *testing.T) {
	store := newGatedStore(scenarioSnapshot())
	svc, _, cleanup := newTestService(t, store)
	defer cleanup()

	q := marchQuery(t)
	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Report(leaderCtx, q)
		leaderErr <- err
	}()

	<-store.entered
	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(store.release)

	res, err := svc.Report(context.Background(), q)
	require.NoError(t, err)
	assert.InDelta(t, 6880, res.Totals.Margin, tolerance)
	assert.Equal(t, int32(1), store.loads.Load())
	assert.Nil(t, store.ctxErr.Load())
}

func TestAddAdjustmentRequiresExistingOrder(t *testing.T) {
	store := &mockStore{snapshot: scenarioSnapshot()}
	svc, _, cleanup := newTestService(t, store)
	defer cleanup()

	_, err := svc.AddAdjustment(context.Background(), "missing", "x", 10)
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.AddAdjustment(context.Background(), "os-a", " ", 10)
	require.ErrorIs(t, err, ErrInvalidAdjustment)
	assert.Empty(t, store.adjustments)
}

func TestReportPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := &mockStore{loadErr: boom}
	svc, _, cleanup := newTestService(t, store)
	defer cleanup()

	_, err := svc.Report(context.Background(), marchQuery(t))
	require.ErrorIs(t, err, boom)
}

func TestReportRejectsUnknownGroup(t *testing.T) {
	svc, _, cleanup := newTestService(t, &mockStore{})
	defer cleanup()

	q := marchQuery(t)
	q.GroupBy = "weather"
	_, err := svc.Report(context.Background(), q)
	require.ErrorIs(t, err, ErrUnknownGroup)
}

func TestReportRanksGroups(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Orders = append(snap.Orders, ServiceOrder{ID: "os-b", StartDate: day(2024, time.March, 1), Status: StatusConfirmed, Space: "Nave", GrossBilling: 100})
	svc, _, cleanup := newTestService(t, &mockStore{snapshot: snap})
	defer cleanup()

	q := marchQuery(t)
	q.GroupBy = "space"
	q.Rank = true
	res, err := svc.Report(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "Palacio", res.Groups[0].Key)
}

func TestEvaluateReadsDatesInServiceZone(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Orders[0].StartDate = time.Date(2024, time.February, 29, 23, 30, 0, 0, time.UTC)
	svc := NewService(&mockStore{snapshot: snap}, nil, nil, madrid, nil)

	order, row, err := svc.Evaluate(context.Background(), "os-a")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", row.StartDate)
	assert.Equal(t, madrid, order.StartDate.Location())
}

func TestEvaluateIgnoresStatus(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Orders[0].Status = StatusDraft
	svc, _, cleanup := newTestService(t, &mockStore{snapshot: snap})
	defer cleanup()

	order, row, err := svc.Evaluate(context.Background(), "os-a")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, order.Status)
	assert.InDelta(t, 2120, row.Cost, tolerance)
}
