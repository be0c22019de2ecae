package profitability

import (
	"sort"
	"strings"
)

// Filter selects the service orders of an aggregation pass.
type Filter struct {
	Range       DateRange
	Status      Status
	Vertical    Vertical
	Space       string
	Salesperson string
	Client      string
	Tariff      Tariff
}

// Match reports whether order passes every set criterion. An empty status
// means confirmed orders only.
func (f Filter) Match(order ServiceOrder) bool {
	status := f.Status
	if status == "" {
		status = StatusConfirmed
	}
	if order.Status != status {
		return false
	}
	if !f.Range.Contains(order.StartDate) {
		return false
	}
	if f.Vertical != "" && order.Vertical != f.Vertical {
		return false
	}
	if f.Tariff != "" && order.Tariff != f.Tariff {
		return false
	}
	return matchText(f.Space, order.Space) &&
		matchText(f.Salesperson, order.Salesperson) &&
		matchText(f.Client, order.Client)
}

func matchText(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}

// OrderResult is the profitability of one service order.
type OrderResult struct {
	OrderID           string          `json:"order_id"`
	Number            string          `json:"number"`
	Client            string          `json:"client"`
	Space             string          `json:"space"`
	Vertical          Vertical        `json:"vertical"`
	StartDate         string          `json:"start_date"`
	Revenue           float64         `json:"revenue"`
	Cost              float64         `json:"cost"`
	Margin            float64         `json:"margin"`
	MarginPct         float64         `json:"margin_pct"`
	CostsByCategory   CategoryAmounts `json:"costs_by_category"`
	PlannedByCategory CategoryAmounts `json:"planned_by_category"`
	Milestones        int             `json:"milestones"`
	Attendees         int             `json:"attendees"`
}

// Totals is the period aggregate.
type Totals struct {
	Revenue         float64         `json:"total_revenue"`
	Cost            float64         `json:"total_cost"`
	Margin          float64         `json:"total_margin"`
	MarginPct       float64         `json:"margin_pct"`
	Orders          int             `json:"count_of_service_orders"`
	Milestones      int             `json:"count_of_milestones"`
	Attendees       int             `json:"total_attendees"`
	CostsByCategory CategoryAmounts `json:"costs_by_category"`
}

// Result bundles everything one aggregation pass produces.
type Result struct {
	Range   DateRange     `json:"range"`
	Rows    []OrderResult `json:"rows"`
	Totals  Totals        `json:"totals"`
	Groups  []GroupRow    `json:"groups,omitempty"`
	Orphans int           `json:"orphan_adjustments"`
}

// Aggregate computes per-order rows, totals and an optional grouped breakdown.
// Start dates are read in the location of the range, so day and month keys
// follow the business calendar rather than the storage zone.
// It does not mutate the snapshot and returns identical output for identical input.
func Aggregate(s Snapshot, f Filter, groupBy GroupKey) Result {
	idx := NewIndex(s)
	loc := f.Range.From.Location()

	selected := make([]ServiceOrder, 0, len(s.Orders))
	for _, o := range s.Orders {
		if f.Match(o) {
			o.StartDate = o.StartDate.In(loc)
			selected = append(selected, o)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].StartDate.Equal(selected[j].StartDate) {
			return selected[i].StartDate.Before(selected[j].StartDate)
		}
		return selected[i].ID < selected[j].ID
	})

	res := Result{
		Range:   f.Range,
		Rows:    make([]OrderResult, 0, len(selected)),
		Totals:  Totals{CostsByCategory: ZeroAmounts()},
		Orphans: idx.Orphans(),
	}
	var groups *groupSet
	if groupBy != nil {
		groups = newGroupSet()
	}

	for _, order := range selected {
		row := idx.Evaluate(order)
		res.Rows = append(res.Rows, row)

		res.Totals.Revenue += row.Revenue
		res.Totals.Cost += row.Cost
		res.Totals.Orders++
		res.Totals.Milestones += row.Milestones
		res.Totals.Attendees += row.Attendees
		res.Totals.CostsByCategory.Merge(row.CostsByCategory)

		if groups != nil {
			groups.add(groupBy(order), row)
		}
	}
	res.Totals.Margin = res.Totals.Revenue - res.Totals.Cost
	res.Totals.MarginPct = MarginPct(res.Totals.Margin, res.Totals.Revenue)
	if groups != nil {
		res.Groups = groups.list()
	}
	return res
}

// Evaluate computes the row of a single order regardless of any filter.
func (i *Index) Evaluate(order ServiceOrder) OrderResult {
	costs := i.Costs(order)
	revenue := i.NetRevenue(order)
	cost := costs.Total()
	margin := revenue - cost

	attendees := order.Attendees
	if attendees == 0 {
		for _, item := range i.briefings[order.ID] {
			attendees += item.Attendees
		}
	}

	return OrderResult{
		OrderID:           order.ID,
		Number:            order.Number,
		Client:            order.Client,
		Space:             order.Space,
		Vertical:          order.Vertical,
		StartDate:         order.StartDate.Format("2006-01-02"),
		Revenue:           revenue,
		Cost:              cost,
		Margin:            margin,
		MarginPct:         MarginPct(margin, revenue),
		CostsByCategory:   costs,
		PlannedByCategory: i.PlannedCosts(order),
		Milestones:        len(i.milestones[order.ID]),
		Attendees:         attendees,
	}
}
