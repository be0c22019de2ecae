package snapshots

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/jobs"
)

type mockRepo struct {
	items map[string]Snapshot
	trail []Status
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]Snapshot)}
}

func (m *mockRepo) Insert(_ context.Context, snap Snapshot) error {
	m.items[snap.ID] = snap
	return nil
}

func (m *mockRepo) List(_ context.Context, filters ListFilters) ([]Snapshot, int, error) {
	out := make([]Snapshot, 0, len(m.items))
	for _, snap := range m.items {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	start := (filters.Page - 1) * filters.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + filters.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], len(out), nil
}

func (m *mockRepo) Get(_ context.Context, id string) (Snapshot, error) {
	snap, ok := m.items[id]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	snap, ok := m.items[id]
	if !ok {
		return ErrSnapshotNotFound
	}
	snap.Status = status
	m.items[id] = snap
	m.trail = append(m.trail, status)
	return nil
}

func (m *mockRepo) SavePayload(_ context.Context, id string, payload *profitability.Result, errMsg string) error {
	snap := m.items[id]
	snap.Payload = payload
	snap.Error = errMsg
	m.items[id] = snap
	return nil
}

type stubReporter struct {
	last profitability.Query
	res  profitability.Result
	err  error
}

func (s *stubReporter) Report(_ context.Context, q profitability.Query) (profitability.Result, error) {
	s.last = q
	return s.res, s.err
}

type queue struct {
	ids []string
	err error
}

func (q *queue) EnqueueSnapshot(_ context.Context, id string) error {
	q.ids = append(q.ids, id)
	return q.err
}

var madrid = time.FixedZone("CET", 3600)

func TestTriggerInsertsPendingAndEnqueues(t *testing.T) {
	repo, q := newMockRepo(), &queue{}
	svc := NewService(repo, &stubReporter{}, q, madrid, nil)

	snap, err := svc.Trigger(context.Background(), Request{Month: "2024-03", GroupBy: "Space"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, "space", snap.GroupBy)
	assert.Equal(t, []string{snap.ID}, q.ids)
	assert.Contains(t, repo.items, snap.ID)
}

func TestTriggerValidatesRequest(t *testing.T) {
	svc := NewService(newMockRepo(), &stubReporter{}, nil, madrid, nil)

	_, err := svc.Trigger(context.Background(), Request{Month: "03-2024"})
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = svc.Trigger(context.Background(), Request{Month: "2024-03", GroupBy: "colour"})
	assert.ErrorIs(t, err, profitability.ErrUnknownGroup)
}

func TestTriggerReportsEnqueueFailure(t *testing.T) {
	repo := newMockRepo()
	boom := errors.New("redis down")
	svc := NewService(repo, &stubReporter{}, &queue{err: boom}, madrid, nil)

	snap, err := svc.Trigger(context.Background(), Request{Month: "2024-03"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusPending, repo.items[snap.ID].Status)
}

func TestProcessStoresPayload(t *testing.T) {
	repo := newMockRepo()
	rep := &stubReporter{res: profitability.Result{Totals: profitability.Totals{Revenue: 1200}}}
	svc := NewService(repo, rep, nil, madrid, nil)
	snap, err := svc.Trigger(context.Background(), Request{Month: "2024-02", GroupBy: "client"})
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), snap.ID))

	got, err := svc.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)
	require.NotNil(t, got.Payload)
	assert.Equal(t, 1200.0, got.Payload.Totals.Revenue)
	assert.Equal(t, []Status{StatusInProgress, StatusReady}, repo.trail)

	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, madrid), rep.last.Filter.Range.From)
	assert.Equal(t, 29, rep.last.Filter.Range.To.Day())
	assert.Equal(t, "client", rep.last.GroupBy)
	assert.True(t, rep.last.Rank)
}

func TestProcessRecordsFailure(t *testing.T) {
	repo := newMockRepo()
	boom := errors.New("records: load cost_orders: timeout")
	svc := NewService(repo, &stubReporter{err: boom}, nil, madrid, nil)
	snap, _ := svc.Trigger(context.Background(), Request{Month: "2024-02"})

	assert.ErrorIs(t, svc.Process(context.Background(), snap.ID), boom)
	got := repo.items[snap.ID]
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, boom.Error(), got.Error)
	assert.Nil(t, got.Payload)
}

func TestProcessSkipsReadySnapshot(t *testing.T) {
	repo := newMockRepo()
	repo.items["done"] = Snapshot{ID: "done", Month: "2024-01", Status: StatusReady}
	svc := NewService(repo, &stubReporter{err: errors.New("must not run")}, nil, madrid, nil)

	assert.NoError(t, svc.Process(context.Background(), "done"))
	assert.Empty(t, repo.trail)
}

func TestListPaginates(t *testing.T) {
	repo := newMockRepo()
	for _, id := range []string{"a", "b", "c"} {
		repo.items[id] = Snapshot{ID: id, Month: "2024-01", Status: StatusPending}
	}
	svc := NewService(repo, &stubReporter{}, nil, madrid, nil)

	items, page, err := svc.List(context.Background(), ListFilters{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestJobHandle(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &stubReporter{}, nil, madrid, nil)
	snap, _ := svc.Trigger(context.Background(), Request{Month: "2024-02"})
	job := NewJob(svc, nil, nil)

	task, err := jobs.NewSnapshotTask(jobs.SnapshotPayload{SnapshotID: snap.ID})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, StatusReady, repo.items[snap.ID].Status)

	missing, _ := jobs.NewSnapshotTask(jobs.SnapshotPayload{SnapshotID: "nope"})
	assert.ErrorIs(t, job.Handle(context.Background(), missing), asynq.SkipRetry)
	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskProfitabilitySnapshot, []byte("x"))), asynq.SkipRetry)
}
