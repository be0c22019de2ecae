package budget

import (
	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

// Compare maps actual category costs against the template targets computed on revenue.
func Compare(actual profitability.CategoryAmounts, tmpl Template, revenue float64) []Row {
	rows := make([]Row, 0, len(profitability.Categories))
	for _, cat := range profitability.Categories {
		pct := tmpl.Pct(cat)
		rows = append(rows, NewRow(string(cat), cat.Label(), KindCost, actual[cat], revenue*pct/100, pct/100))
	}
	return rows
}

// NewRow computes variance = target - actual. The percentage is nil when the
// target is not positive.
func NewRow(key, label string, kind Kind, actual, target, targetPct float64) Row {
	row := Row{
		Key:       key,
		Label:     label,
		Kind:      kind,
		Actual:    shared.Round2(actual),
		Target:    shared.Round2(target),
		TargetPct: targetPct,
		Variance:  shared.Round2(target - actual),
	}
	if target > 0 {
		pct := shared.Round4((target - actual) / target)
		row.VariancePct = &pct
	}
	return row
}

// DefaultTemplatePolicy picks the template that applies to an order.
type DefaultTemplatePolicy func(templates []Template, assignedID string) Template

// ResolveTemplate applies the assigned template, then the one flagged as
// default, then the first listed, and finally the zero template.
func ResolveTemplate(templates []Template, assignedID string) Template {
	if assignedID != "" {
		for _, t := range templates {
			if t.ID == assignedID {
				return t
			}
		}
	}
	for _, t := range templates {
		if t.IsDefault {
			return t
		}
	}
	if len(templates) > 0 {
		return templates[0]
	}
	return ZeroTemplate()
}

var _ DefaultTemplatePolicy = ResolveTemplate
