package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

type mockRepo struct {
	templates []Template
	assigned  map[string]string
	actual    map[string]profitability.CategoryAmounts
}

func newMockRepo(templates ...Template) *mockRepo {
	return &mockRepo{
		templates: templates,
		assigned:  make(map[string]string),
		actual:    make(map[string]profitability.CategoryAmounts),
	}
}

func (m *mockRepo) ListTemplates(ctx context.Context) ([]Template, error) {
	return m.templates, nil
}

func (m *mockRepo) GetTemplate(ctx context.Context, id string) (Template, error) {
	for _, t := range m.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, ErrTemplateNotFound
}

func (m *mockRepo) InsertTemplate(ctx context.Context, tmpl Template) error {
	m.templates = append(m.templates, tmpl)
	return nil
}

func (m *mockRepo) UpdateTemplate(ctx context.Context, tmpl Template) error {
	for i, t := range m.templates {
		if t.ID == tmpl.ID {
			m.templates[i] = tmpl
			return nil
		}
	}
	return ErrTemplateNotFound
}

func (m *mockRepo) AssignTemplate(ctx context.Context, orderID, templateID string) error {
	m.assigned[orderID] = templateID
	return nil
}

func (m *mockRepo) ActualCosts(ctx context.Context, orderID string) (profitability.CategoryAmounts, error) {
	return m.actual[orderID].Clone(), nil
}

func (m *mockRepo) ReplaceActualCosts(ctx context.Context, orderID string, costs profitability.CategoryAmounts) error {
	m.actual[orderID] = costs.Clone()
	return nil
}

type stubEvaluator struct {
	order profitability.ServiceOrder
	row   profitability.OrderResult
}

func (s stubEvaluator) Evaluate(ctx context.Context, orderID string) (profitability.ServiceOrder, profitability.OrderResult, error) {
	if orderID != s.order.ID {
		return profitability.ServiceOrder{}, profitability.OrderResult{}, profitability.ErrOrderNotFound
	}
	return s.order, s.row, nil
}

func TestCompare(t *testing.T) {
	actual := profitability.CategoryAmounts{
		profitability.CategoryGastronomy:    2000,
		profitability.CategoryExternalStaff: 120,
	}
	tmpl := Template{ID: "t", Targets: map[profitability.Category]float64{
		profitability.CategoryGastronomy:    25,
		profitability.CategoryExternalStaff: 1,
	}}
	rows := Compare(actual, tmpl, 9000)
	require.Len(t, rows, len(profitability.Categories))

	gastro := rows[0]
	assert.Equal(t, "gastronomy", gastro.Key)
	assert.Equal(t, 2250.0, gastro.Target)
	assert.Equal(t, 250.0, gastro.Variance)
	require.NotNil(t, gastro.VariancePct)
	assert.InDelta(t, 0.1111, *gastro.VariancePct, 1e-4)
	assert.False(t, gastro.Alert())

	staff := rows[10]
	assert.Equal(t, "external_staff", staff.Key)
	assert.Equal(t, -30.0, staff.Variance)
	assert.True(t, staff.Alert())

	ice := rows[3]
	assert.Nil(t, ice.VariancePct)
	assert.False(t, ice.Alert())
}

func TestCompareWithZeroTemplateDegeneratesToMinusActual(t *testing.T) {
	actual := profitability.CategoryAmounts{profitability.CategoryTransport: 80}
	rows := Compare(actual, ZeroTemplate(), 1000)
	for _, row := range rows {
		assert.Zero(t, row.Target)
		assert.Nil(t, row.VariancePct)
		if row.Key == "transport" {
			assert.Equal(t, -80.0, row.Variance)
		}
	}
}

func TestRevenueRowAlert(t *testing.T) {
	below := NewRow("sales", "Ventas", KindRevenue, 800, 1000, 1)
	above := NewRow("sales", "Ventas", KindRevenue, 1200, 1000, 1)
	assert.True(t, below.Alert())
	assert.False(t, above.Alert())
}

func TestResolveTemplatePolicy(t *testing.T) {
	first := Template{ID: "first"}
	flagged := Template{ID: "flagged", IsDefault: true}
	assigned := Template{ID: "assigned"}

	assert.Equal(t, "assigned", ResolveTemplate([]Template{first, flagged, assigned}, "assigned").ID)
	assert.Equal(t, "flagged", ResolveTemplate([]Template{first, flagged}, "").ID)
	assert.Equal(t, "flagged", ResolveTemplate([]Template{first, flagged}, "missing").ID)
	assert.Equal(t, "first", ResolveTemplate([]Template{first}, "").ID)
	assert.Equal(t, ZeroTemplate(), ResolveTemplate(nil, ""))
}

func TestTemplateBalanced(t *testing.T) {
	tmpl := Template{Targets: map[profitability.Category]float64{
		profitability.CategoryGastronomy: 60,
		profitability.CategoryCellar:     40,
	}}
	assert.True(t, tmpl.Balanced())
	tmpl.Targets[profitability.CategoryCellar] = 30
	assert.False(t, tmpl.Balanced())
}

func TestTemplateInputValidate(t *testing.T) {
	require.ErrorIs(t, TemplateInput{}.Validate(), ErrInvalidTemplate)
	require.Error(t, TemplateInput{Name: "x", Targets: map[profitability.Category]float64{"fuel": 10}}.Validate())
	require.Error(t, TemplateInput{Name: "x", Targets: map[profitability.Category]float64{profitability.CategoryIce: 120}}.Validate())
	require.NoError(t, TemplateInput{Name: "x", Targets: map[profitability.Category]float64{profitability.CategoryIce: 12}}.Validate())
}

func TestBuildStatementHQShare(t *testing.T) {
	st := BuildStatement(StatementInput{
		Order:     profitability.ServiceOrder{ID: "os"},
		Revenue:   10000,
		Attendees: 100,
		Planned:   profitability.CategoryAmounts{profitability.CategoryGastronomy: 3000},
		Closing:   profitability.CategoryAmounts{profitability.CategoryGastronomy: 2800},
		Actual:    profitability.CategoryAmounts{profitability.CategoryGastronomy: 2600},
		Template:  Template{Targets: map[profitability.Category]float64{profitability.CategoryGastronomy: 30}},
	})
	assert.Equal(t, 100.0, st.RevenuePerAttendee)
	assert.Equal(t, 7000.0, st.Planned.Profit)
	assert.Equal(t, 1750.0, st.Planned.HQShare)
	assert.Equal(t, 5250.0, st.Planned.AfterHQ)
	assert.Equal(t, 7200.0, st.Closing.Profit)
	assert.Equal(t, 7400.0, st.Actual.Profit)
	assert.Equal(t, 3000.0, st.TargetCost)
	assert.Equal(t, 400.0, st.Lines[0].Deviation.Variance)
	assert.False(t, st.TemplateBalanced)
}

func TestBuildStatementActualDefaultsToClosing(t *testing.T) {
	st := BuildStatement(StatementInput{
		Revenue: 0,
		Closing: profitability.CategoryAmounts{profitability.CategoryDecor: 50},
	})
	assert.Equal(t, 50.0, st.Lines[7].Actual)
	assert.Zero(t, st.Actual.ProfitPct)
	assert.Zero(t, st.RevenuePerAttendee)
}

func TestServiceCreateTemplateWarnsWhenUnbalanced(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, stubEvaluator{}, nil)

	tmpl, unbalanced, err := svc.CreateTemplate(context.Background(), TemplateInput{
		Name:    "Boda",
		Targets: map[profitability.Category]float64{profitability.CategoryGastronomy: 40},
	})
	require.NoError(t, err)
	assert.True(t, unbalanced)
	assert.NotEmpty(t, tmpl.ID)
	assert.Len(t, repo.templates, 1)
}

func TestServiceOrderStatementUsesAssignedTemplate(t *testing.T) {
	repo := newMockRepo(
		Template{ID: "a", Targets: map[profitability.Category]float64{profitability.CategoryGastronomy: 10}},
		Template{ID: "b", Targets: map[profitability.Category]float64{profitability.CategoryGastronomy: 30}},
	)
	eval := stubEvaluator{
		order: profitability.ServiceOrder{ID: "os", BudgetTemplateID: "b"},
		row: profitability.OrderResult{
			Revenue:           9000,
			CostsByCategory:   profitability.CategoryAmounts{profitability.CategoryGastronomy: 2000},
			PlannedByCategory: profitability.CategoryAmounts{profitability.CategoryGastronomy: 2000},
		},
	}
	svc := NewService(repo, eval, nil)

	st, err := svc.OrderStatement(context.Background(), "os")
	require.NoError(t, err)
	assert.Equal(t, "b", st.Template.ID)
	assert.Equal(t, 2700.0, st.Lines[0].Target)

	rows, err := svc.OrderVariance(context.Background(), "os")
	require.NoError(t, err)
	assert.Equal(t, 700.0, rows[0].Variance)

	_, err = svc.OrderStatement(context.Background(), "missing")
	require.ErrorIs(t, err, profitability.ErrOrderNotFound)
}

func TestServiceActualCostsOverrideClosing(t *testing.T) {
	repo := newMockRepo()
	eval := stubEvaluator{
		order: profitability.ServiceOrder{ID: "os"},
		row: profitability.OrderResult{
			Revenue: 5000,
			CostsByCategory: profitability.CategoryAmounts{
				profitability.CategoryGastronomy: 1200,
				profitability.CategoryIce:        80,
			},
		},
	}
	svc := NewService(repo, eval, nil)
	ctx := context.Background()

	st, err := svc.SetActualCosts(ctx, "os", profitability.CategoryAmounts{profitability.CategoryGastronomy: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, st.Lines[0].Actual)
	assert.Equal(t, 1200.0, st.Lines[0].Closing)
	assert.Equal(t, 80.0, st.Lines[3].Actual)
	assert.Equal(t, 1080.0, st.Actual.Cost)

	// a later read keeps the stored override
	st, err = svc.OrderStatement(ctx, "os")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, st.Lines[0].Actual)

	_, err = svc.SetActualCosts(ctx, "os", profitability.CategoryAmounts{"flowers": 10})
	require.ErrorIs(t, err, ErrInvalidActualCost)
	_, err = svc.SetActualCosts(ctx, "os", profitability.CategoryAmounts{profitability.CategoryIce: -5})
	require.ErrorIs(t, err, ErrInvalidActualCost)
	_, err = svc.SetActualCosts(ctx, "missing", profitability.CategoryAmounts{})
	require.ErrorIs(t, err, profitability.ErrOrderNotFound)
	assert.Equal(t, profitability.CategoryAmounts{profitability.CategoryGastronomy: 1000}, repo.actual["os"])
}

func TestServiceAssignTemplateRequiresTemplate(t *testing.T) {
	repo := newMockRepo(Template{ID: "a"})
	svc := NewService(repo, stubEvaluator{}, nil)

	require.ErrorIs(t, svc.AssignTemplate(context.Background(), "os", "zzz"), ErrTemplateNotFound)
	require.NoError(t, svc.AssignTemplate(context.Background(), "os", "a"))
	assert.Equal(t, "a", repo.assigned["os"])
}
