package records

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

func ptr[T any](v T) *T { return &v }

func TestFlatAmountFallbackChain(t *testing.T) {
	assert.Equal(t, 120.0, FlatAmount(ptr(120.0), ptr(80.0)))
	assert.Equal(t, 80.0, FlatAmount(nil, ptr(80.0)))
	assert.Equal(t, 0.0, FlatAmount(nil, nil))
	assert.Equal(t, 0.0, FlatAmount(ptr(0.0), ptr(80.0)))
}

func TestDepartmentCategory(t *testing.T) {
	cases := []struct {
		department string
		material   *string
		want       profitability.Category
		ok         bool
	}{
		{"Gastronomia", nil, profitability.CategoryGastronomy, true},
		{"MATERIAL", ptr("Bodega"), profitability.CategoryCellar, true},
		{"material", ptr("Bio"), profitability.CategoryConsumables, true},
		{"Material", ptr("Almacén"), profitability.CategoryWarehouse, true},
		{"Material", ptr("Alquiler"), profitability.CategoryRental, true},
		{"Material", nil, "", false},
		{"Transporte", nil, profitability.CategoryTransport, true},
		{"Hielo", nil, profitability.CategoryIce, true},
		{"Decoración", nil, profitability.CategoryDecor, true},
		{"Atipicos", nil, profitability.CategoryAtypical, true},
		{"Limpieza", nil, "", false},
	}
	for _, tc := range cases {
		got, ok := DepartmentCategory(tc.department, tc.material)
		assert.Equal(t, tc.ok, ok, tc.department)
		assert.Equal(t, tc.want, got, tc.department)
	}
}

func TestDateInKeepsCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := dateIn(time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, 7, got.Day())
	assert.Equal(t, loc, got.Location())
}

func TestForeignKeyViolationDetection(t *testing.T) {
	fk := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"})
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(errors.New("boom")))
}

func TestWrapNamesTable(t *testing.T) {
	base := errors.New("conn reset")
	err := wrap("cost_orders", base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "records: load cost_orders")
	assert.NoError(t, wrap("cost_orders", nil))
}
