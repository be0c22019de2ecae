package cpr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func march(t *testing.T) profitability.DateRange {
	t.Helper()
	r, err := profitability.NewDateRange(at(2024, time.March, 1), at(2024, time.March, 31))
	require.NoError(t, err)
	return r
}

func sampleInputs() Inputs {
	return Inputs{
		Orders: []profitability.ServiceOrder{
			{ID: "os-1", StartDate: at(2024, time.March, 5), Status: profitability.StatusConfirmed},
			{ID: "os-2", StartDate: at(2024, time.March, 6), Status: profitability.StatusPending},
			{ID: "os-3", StartDate: at(2024, time.April, 6), Status: profitability.StatusConfirmed},
		},
		Sales: []RecipeSale{
			{OrderID: "os-1", Quantity: 100, SalePrice: 12, RawMaterialCost: 4},
			{OrderID: "os-2", Quantity: 50, SalePrice: 12, RawMaterialCost: 4},
			{OrderID: "os-3", Quantity: 10, SalePrice: 12, RawMaterialCost: 4},
		},
		Cessions: []StaffCession{
			{Date: at(2024, time.March, 7), HomeDepartment: Department, CostCenter: "SALA", Planned: profitability.Span{Start: "08:00", End: "16:00"}, HourlyRate: 20},
			{Date: at(2024, time.March, 8), HomeDepartment: "ALMACEN", CostCenter: Department, Planned: profitability.Span{Start: "08:00", End: "12:00"}, Actual: profitability.Span{Start: "08:00", End: "13:00"}, HourlyRate: 15},
			{Date: at(2024, time.March, 9), HomeDepartment: Department, CostCenter: Department, Planned: profitability.Span{Start: "08:00", End: "12:00"}, HourlyRate: 15},
		},
		Requests: []StaffRequest{
			{ServiceDate: at(2024, time.March, 10), Status: RequestClosed, Planned: profitability.Span{Start: "06:00", End: "14:00"}, Quantity: 2, HourlyRate: 12,
				Assigned: []profitability.Span{{Start: "06:00", End: "14:00"}, {Start: "06:00", End: "12:00"}}},
			{ServiceDate: at(2024, time.March, 11), Status: "Pendiente", Planned: profitability.Span{Start: "06:00", End: "10:00"}, Quantity: 1, HourlyRate: 12},
		},
		FixedCosts: []FixedCost{{Concept: "Alquiler nave", MonthlyAmount: 300}, {Concept: "Seguros", MonthlyAmount: 100}},
		Targets: map[string]MonthlyTarget{
			"2024-03": {Month: "2024-03", Sales: 90, StaffCessionIncome: 10, RawMaterial: 30, StaffRequests: 10, Other: 20},
		},
	}
}

func TestBuildStatement(t *testing.T) {
	st := BuildStatement(sampleInputs(), march(t))

	assert.Equal(t, 1200.0, st.Sales)
	assert.Equal(t, 400.0, st.RawMaterial)
	assert.Equal(t, Figures{Planned: 160, Closing: 160}, st.StaffCessionIncome)
	assert.Equal(t, Figures{Planned: 60, Closing: 75}, st.StaffCessionExpense)
	assert.Equal(t, 192.0+48.0, st.StaffRequests.Planned)
	assert.Equal(t, 168.0, st.StaffRequests.Closing)
	assert.Equal(t, 400.0, st.FixedCosts)
	assert.Equal(t, 1360.0, st.Revenue)
	assert.Equal(t, 400.0+75+168+400, st.Costs)
	assert.InDelta(t, 1360-1043, st.Result, 1e-9)
}

func TestFixedCostsScaleWithMonths(t *testing.T) {
	r, err := profitability.NewDateRange(at(2024, time.January, 15), at(2024, time.March, 2))
	require.NoError(t, err)
	st := BuildStatement(Inputs{FixedCosts: []FixedCost{{MonthlyAmount: 100}}}, r)
	assert.Equal(t, 300.0, st.FixedCosts)
	assert.Zero(t, st.MarginPct)
}

func TestCompareTagsRevenueRows(t *testing.T) {
	st := BuildStatement(sampleInputs(), march(t))
	rows := Compare(st, sampleInputs().Targets["2024-03"])
	require.Len(t, rows, 6)

	assert.Equal(t, "sales", rows[0].Key)
	assert.Equal(t, "revenue", string(rows[0].Kind))
	assert.Equal(t, 1224.0, rows[0].Target)
	assert.True(t, rows[0].Alert())

	assert.Equal(t, "other", rows[5].Key)
	assert.Equal(t, 272.0, rows[5].Target)
	assert.True(t, rows[5].Alert())

	assert.Nil(t, rows[3].VariancePct)
}

func TestYearProducesTwelveMonths(t *testing.T) {
	rows := Year(2024, time.UTC, sampleInputs())
	require.Len(t, rows, 12)
	assert.Equal(t, "2024-01", rows[0].Month)
	assert.Equal(t, 1360.0, rows[2].Revenue)
	assert.Equal(t, 120.0, rows[3].Revenue)
	assert.Equal(t, -400.0, rows[0].Result)
	assert.NotZero(t, rows[2].TargetResult)
	assert.Zero(t, rows[3].TargetResult)
}

func TestValidMonth(t *testing.T) {
	assert.True(t, ValidMonth("2024-12"))
	assert.False(t, ValidMonth("2024-13"))
	assert.False(t, ValidMonth("24-01"))
}

type mockRepo struct {
	inputs  Inputs
	err     error
	fixed   []FixedCost
	targets map[string]MonthlyTarget
}

func (m *mockRepo) LoadInputs(ctx context.Context, r profitability.DateRange) (Inputs, error) {
	return m.inputs, m.err
}

func (m *mockRepo) ListFixedCosts(ctx context.Context) ([]FixedCost, error) {
	return m.fixed, nil
}

func (m *mockRepo) ReplaceFixedCosts(ctx context.Context, costs []FixedCost) error {
	m.fixed = costs
	return nil
}

func (m *mockRepo) UpsertTarget(ctx context.Context, target MonthlyTarget) error {
	if m.targets == nil {
		m.targets = make(map[string]MonthlyTarget)
	}
	m.targets[target.Month] = target
	return nil
}

func TestServiceStatement(t *testing.T) {
	svc := NewService(&mockRepo{inputs: sampleInputs()}, time.UTC)
	view, err := svc.Statement(context.Background(), march(t))
	require.NoError(t, err)
	assert.Equal(t, "2024-03", view.Target.Month)
	assert.Len(t, view.Rows, 6)
}

func TestServiceStatementWrapsStoreErrors(t *testing.T) {
	boom := errors.New("timeout")
	svc := NewService(&mockRepo{err: boom}, time.UTC)
	_, err := svc.Statement(context.Background(), march(t))
	require.ErrorIs(t, err, boom)
}

func TestServiceReplaceFixedCosts(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, time.UTC)

	_, err := svc.ReplaceFixedCosts(context.Background(), []FixedCost{{Concept: " ", MonthlyAmount: 1}})
	require.ErrorIs(t, err, ErrInvalidFixedCost)

	out, err := svc.ReplaceFixedCosts(context.Background(), []FixedCost{{Concept: "Luz", MonthlyAmount: 80}})
	require.NoError(t, err)
	require.Len(t, repo.fixed, 1)
	assert.NotEmpty(t, out[0].ID)
}

func TestServiceSetTarget(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, time.UTC)

	_, err := svc.SetTarget(context.Background(), "2024/01", MonthlyTarget{})
	require.ErrorIs(t, err, ErrInvalidMonth)

	_, err = svc.SetTarget(context.Background(), "2024-01", MonthlyTarget{Sales: 80})
	require.NoError(t, err)
	assert.Equal(t, 80.0, repo.targets["2024-01"].Sales)
}
