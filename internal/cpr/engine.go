package cpr

import (
	"time"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Figures is one planned/closing pair.
type Figures struct {
	Planned float64 `json:"planned"`
	Closing float64 `json:"closing"`
}

// Statement is the CPR profit and loss over a range.
type Statement struct {
	Range               profitability.DateRange `json:"range"`
	Sales               float64                 `json:"sales"`
	RawMaterial         float64                 `json:"raw_material"`
	StaffCessionIncome  Figures                 `json:"staff_cession_income"`
	StaffCessionExpense Figures                 `json:"staff_cession_expense"`
	StaffRequests       Figures                 `json:"staff_requests"`
	FixedCosts          float64                 `json:"fixed_costs"`
	Revenue             float64                 `json:"revenue"`
	Costs               float64                 `json:"costs"`
	Result              float64                 `json:"result"`
	MarginPct           float64                 `json:"margin_pct"`
}

// BuildStatement computes the CPR account for the range. Recipe sales count
// only for confirmed orders starting inside the range; fixed costs accrue once
// per month the range touches.
func BuildStatement(in Inputs, r profitability.DateRange) Statement {
	st := Statement{Range: r}

	inRange := make(map[string]struct{})
	for _, o := range in.Orders {
		if o.Status == profitability.StatusConfirmed && r.Contains(o.StartDate) {
			inRange[o.ID] = struct{}{}
		}
	}
	for _, s := range in.Sales {
		if _, ok := inRange[s.OrderID]; !ok {
			continue
		}
		st.Sales += s.SalePrice * s.Quantity
		st.RawMaterial += s.RawMaterialCost * s.Quantity
	}

	for _, c := range in.Cessions {
		if !r.Contains(c.Date) {
			continue
		}
		switch {
		case c.Income():
			st.StaffCessionIncome.Planned += c.PlannedAmount()
			st.StaffCessionIncome.Closing += c.ClosingAmount()
		case c.Expense():
			st.StaffCessionExpense.Planned += c.PlannedAmount()
			st.StaffCessionExpense.Closing += c.ClosingAmount()
		}
	}

	for _, req := range in.Requests {
		if !r.Contains(req.ServiceDate) {
			continue
		}
		st.StaffRequests.Planned += req.PlannedAmount()
		st.StaffRequests.Closing += req.ClosingAmount()
	}

	var monthly float64
	for _, f := range in.FixedCosts {
		monthly += f.MonthlyAmount
	}
	st.FixedCosts = monthly * float64(len(r.Months()))

	st.Revenue = st.Sales + st.StaffCessionIncome.Closing
	st.Costs = st.RawMaterial + st.StaffCessionExpense.Closing + st.StaffRequests.Closing + st.FixedCosts
	st.Result = st.Revenue - st.Costs
	st.MarginPct = profitability.MarginPct(st.Result, st.Revenue)
	return st
}

// Compare lays the statement against a monthly target. Targets are
// percentages of the statement revenue.
func Compare(st Statement, target MonthlyTarget) []budget.Row {
	row := func(key, label string, kind budget.Kind, actual, pct float64) budget.Row {
		return budget.NewRow(key, label, kind, actual, st.Revenue*pct/100, pct/100)
	}
	return []budget.Row{
		row("sales", "Venta gastronomía", budget.KindRevenue, st.Sales, target.Sales),
		row("staff_cession_income", "Cesión de personal", budget.KindRevenue, st.StaffCessionIncome.Closing, target.StaffCessionIncome),
		row("raw_material", "Consumo materia prima", budget.KindCost, st.RawMaterial, target.RawMaterial),
		row("staff_cession_expense", "Personal cedido a CPR", budget.KindCost, st.StaffCessionExpense.Closing, target.StaffCessionExpense),
		row("staff_requests", "Personal solicitado", budget.KindCost, st.StaffRequests.Closing, target.StaffRequests),
		row("other", "Otros gastos", budget.KindCost, st.FixedCosts, target.Other),
	}
}

// MonthRow is one line of the yearly view.
type MonthRow struct {
	Month        string  `json:"month"`
	Revenue      float64 `json:"revenue"`
	RawMaterial  float64 `json:"raw_material"`
	CessionCost  float64 `json:"cession_cost"`
	RequestCost  float64 `json:"request_cost"`
	TotalStaff   float64 `json:"total_staff"`
	FixedCosts   float64 `json:"fixed_costs"`
	Result       float64 `json:"result"`
	TargetResult float64 `json:"target_result"`
}

// Year runs the statement for each month of year.
func Year(year int, loc *time.Location, in Inputs) []MonthRow {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]MonthRow, 0, 12)
	for m := time.January; m <= time.December; m++ {
		r := profitability.MonthRange(time.Date(year, m, 1, 0, 0, 0, 0, loc))
		st := BuildStatement(in, r)
		key := profitability.MonthKey(r.From)
		row := MonthRow{
			Month:       key,
			Revenue:     st.Revenue,
			RawMaterial: st.RawMaterial,
			CessionCost: st.StaffCessionExpense.Closing,
			RequestCost: st.StaffRequests.Closing,
			TotalStaff:  st.StaffCessionExpense.Closing + st.StaffRequests.Closing,
			FixedCosts:  st.FixedCosts,
			Result:      st.Result,
		}
		if target, ok := in.Targets[key]; ok {
			row.TargetResult = targetResult(st.Revenue, target)
		}
		rows = append(rows, row)
	}
	return rows
}

func targetResult(revenue float64, t MonthlyTarget) float64 {
	income := revenue * (t.Sales + t.StaffCessionIncome) / 100
	costs := revenue * (t.RawMaterial + t.StaffCessionExpense + t.StaffRequests + t.Other) / 100
	return income - costs
}
