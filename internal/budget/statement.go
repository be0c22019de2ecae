package budget

import (
	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

// HQShare is the portion of profit passed on to headquarters.
const HQShare = 0.25

// StatementLine is one cost category of an order's operating account.
type StatementLine struct {
	Category   profitability.Category `json:"category"`
	Label      string                 `json:"label"`
	Planned    float64                `json:"planned"`
	Closing    float64                `json:"closing"`
	Actual     float64                `json:"actual"`
	Target     float64                `json:"target"`
	TargetPct  float64                `json:"target_pct"`
	PlannedPct float64                `json:"planned_pct"`
	ClosingPct float64                `json:"closing_pct"`
	ActualPct  float64                `json:"actual_pct"`
	Deviation  Row                    `json:"deviation"`
}

// Profit holds the bottom line of one statement column.
type Profit struct {
	Cost      float64 `json:"cost"`
	Profit    float64 `json:"profit"`
	HQShare   float64 `json:"hq_share"`
	AfterHQ   float64 `json:"after_hq"`
	ProfitPct float64 `json:"profit_pct"`
}

// Statement is the operating account of a single service order.
type Statement struct {
	OrderID            string          `json:"order_id"`
	Number             string          `json:"number"`
	Client             string          `json:"client"`
	Template           Template        `json:"template"`
	TemplateBalanced   bool            `json:"template_balanced"`
	Revenue            float64         `json:"revenue"`
	RevenuePerAttendee float64         `json:"revenue_per_attendee"`
	Lines              []StatementLine `json:"lines"`
	Planned            Profit          `json:"planned"`
	Closing            Profit          `json:"closing"`
	Actual             Profit          `json:"actual"`
	TargetCost         float64         `json:"target_cost"`
}

// StatementInput gathers the figures of one order. Actual overrides closing
// per category; missing categories use the closing figure.
type StatementInput struct {
	Order     profitability.ServiceOrder
	Revenue   float64
	Attendees int
	Planned   profitability.CategoryAmounts
	Closing   profitability.CategoryAmounts
	Actual    profitability.CategoryAmounts
	Template  Template
}

// BuildStatement lays out planned, closing and actual costs against the template.
func BuildStatement(in StatementInput) Statement {
	st := Statement{
		OrderID:          in.Order.ID,
		Number:           in.Order.Number,
		Client:           in.Order.Client,
		Template:         in.Template,
		TemplateBalanced: in.Template.Balanced(),
		Revenue:          shared.Round2(in.Revenue),
		Lines:            make([]StatementLine, 0, len(profitability.Categories)),
	}
	if in.Attendees > 0 {
		st.RevenuePerAttendee = shared.Round2(in.Revenue / float64(in.Attendees))
	}

	var planned, closing, actual float64
	for _, cat := range profitability.Categories {
		pct := in.Template.Pct(cat) / 100
		closingValue := in.Closing[cat]
		actualValue, ok := in.Actual[cat]
		if !ok {
			actualValue = closingValue
		}
		target := in.Revenue * pct
		line := StatementLine{
			Category:   cat,
			Label:      cat.Label(),
			Planned:    shared.Round2(in.Planned[cat]),
			Closing:    shared.Round2(closingValue),
			Actual:     shared.Round2(actualValue),
			Target:     shared.Round2(target),
			TargetPct:  pct,
			PlannedPct: share(in.Planned[cat], in.Revenue),
			ClosingPct: share(closingValue, in.Revenue),
			ActualPct:  share(actualValue, in.Revenue),
			Deviation:  NewRow(string(cat), cat.Label(), KindCost, actualValue, target, pct),
		}
		st.Lines = append(st.Lines, line)
		planned += in.Planned[cat]
		closing += closingValue
		actual += actualValue
		st.TargetCost += target
	}
	st.TargetCost = shared.Round2(st.TargetCost)
	st.Planned = profitOf(in.Revenue, planned)
	st.Closing = profitOf(in.Revenue, closing)
	st.Actual = profitOf(in.Revenue, actual)
	return st
}

func profitOf(revenue, cost float64) Profit {
	profit := revenue - cost
	hq := profit * HQShare
	return Profit{
		Cost:      shared.Round2(cost),
		Profit:    shared.Round2(profit),
		HQShare:   shared.Round2(hq),
		AfterHQ:   shared.Round2(profit - hq),
		ProfitPct: share(profit, revenue),
	}
}

func share(v, revenue float64) float64 {
	if revenue <= 0 {
		return 0
	}
	return shared.Round4(v / revenue)
}
