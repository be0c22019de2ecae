package budget

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Template is a named set of target percentages of revenue, one per cost category.
type Template struct {
	ID        string                             `json:"id"`
	Name      string                             `json:"name"`
	IsDefault bool                               `json:"is_default"`
	Targets   map[profitability.Category]float64 `json:"targets"`
}

// ZeroTemplate is applied when no template exists at all.
func ZeroTemplate() Template {
	return Template{ID: "default", Name: "Por defecto", Targets: map[profitability.Category]float64{}}
}

// Sum adds every category percentage.
func (t Template) Sum() float64 {
	var total float64
	for _, cat := range profitability.Categories {
		total += t.Targets[cat]
	}
	return total
}

// Balanced reports whether the percentages add up to 100 within a cent of a point.
func (t Template) Balanced() bool {
	return math.Abs(t.Sum()-100) < 0.01
}

// Pct returns the target percentage of a category.
func (t Template) Pct(cat profitability.Category) float64 {
	if t.Targets == nil {
		return 0
	}
	return t.Targets[cat]
}

// TemplateInput captures template create/update input.
type TemplateInput struct {
	Name      string                             `json:"name" validate:"required,max=120"`
	IsDefault bool                               `json:"is_default"`
	Targets   map[profitability.Category]float64 `json:"targets" validate:"dive,gte=0,lte=100"`
}

// Validate ensures correctness.
func (in TemplateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidTemplate)
	}
	for cat, pct := range in.Targets {
		if !cat.Valid() {
			return fmt.Errorf("%w: unknown category %s", ErrInvalidTemplate, cat)
		}
		if pct < 0 || pct > 100 || math.IsNaN(pct) {
			return fmt.Errorf("%w: percentage out of range for %s", ErrInvalidTemplate, cat)
		}
	}
	return nil
}

// Kind tags a row as a cost or a revenue line.
type Kind string

const (
	// KindCost rows are favourable when actual stays under target.
	KindCost Kind = "cost"
	// KindRevenue rows are favourable when actual exceeds target.
	KindRevenue Kind = "revenue"
)

// Row is one line of a variance table.
type Row struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Kind        Kind     `json:"kind"`
	Actual      float64  `json:"actual"`
	Target      float64  `json:"budget_target"`
	TargetPct   float64  `json:"target_pct"`
	Variance    float64  `json:"variance_amount"`
	VariancePct *float64 `json:"variance_pct"`
}

// Alert reports whether the row deserves a warning: a cost above target or
// revenue below it.
func (r Row) Alert() bool {
	if r.Target <= 0 {
		return false
	}
	if r.Kind == KindRevenue {
		return r.Variance > 0
	}
	return r.Variance < 0
}

var (
	// ErrTemplateNotFound occurs when a template id is unknown.
	ErrTemplateNotFound = errors.New("budget: template not found")
	// ErrInvalidTemplate rejects a template input.
	ErrInvalidTemplate = errors.New("budget: invalid template")
	// ErrInvalidActualCost rejects an actual cost override.
	ErrInvalidActualCost = errors.New("budget: invalid actual cost")
)
