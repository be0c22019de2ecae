package records

import (
	"strings"
	"time"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// FlatAmount normalises the loosely typed money of a department order:
// total first, then price, then zero.
func FlatAmount(total, price *float64) float64 {
	if total != nil {
		return *total
	}
	if price != nil {
		return *price
	}
	return 0
}

// DepartmentCategory maps a flat cost order onto its category. Material
// orders are split by their subtype.
func DepartmentCategory(department string, materialType *string) (profitability.Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(department)) {
	case "GASTRONOMIA", "GASTRONOMÍA":
		return profitability.CategoryGastronomy, true
	case "MATERIAL":
		return profitability.MaterialCategory(str(materialType))
	case "TRANSPORTE":
		return profitability.CategoryTransport, true
	case "HIELO":
		return profitability.CategoryIce, true
	case "DECORACION", "DECORACIÓN":
		return profitability.CategoryDecor, true
	case "ATIPICO", "ATÍPICO", "ATIPICOS", "ATÍPICOS":
		return profitability.CategoryAtypical, true
	default:
		return "", false
	}
}

func num(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func span(start, end *string) profitability.Span {
	return profitability.Span{Start: str(start), End: str(end)}
}

// dateIn re-anchors a DATE column, read as UTC midnight, to the same calendar day in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
