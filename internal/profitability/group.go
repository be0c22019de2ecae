package profitability

import (
	"fmt"
	"sort"
	"strings"
)

// GroupKey derives the breakdown key of a service order.
type GroupKey func(ServiceOrder) string

const unassignedKey = "Sin asignar"

var groupKeys = map[string]GroupKey{
	"space":       func(o ServiceOrder) string { return orUnassigned(o.Space) },
	"salesperson": func(o ServiceOrder) string { return orUnassigned(o.Salesperson) },
	"client":      func(o ServiceOrder) string { return orUnassigned(o.Client) },
	"vertical":    func(o ServiceOrder) string { return orUnassigned(string(o.Vertical)) },
	"maitre":      func(o ServiceOrder) string { return orUnassigned(o.Maitre) },
	"month":       func(o ServiceOrder) string { return MonthKey(o.StartDate) },
}

// GroupKeyByName resolves one of space, salesperson, client, vertical, maitre
// or month. An empty name disables grouping.
func GroupKeyByName(name string) (GroupKey, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	key, ok := groupKeys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	return key, nil
}

func orUnassigned(v string) string {
	if strings.TrimSpace(v) == "" {
		return unassignedKey
	}
	return v
}

// GroupRow is one line of a grouped breakdown.
type GroupRow struct {
	Key        string  `json:"key"`
	Revenue    float64 `json:"revenue"`
	Cost       float64 `json:"cost"`
	Margin     float64 `json:"margin"`
	MarginPct  float64 `json:"margin_pct"`
	Orders     int     `json:"orders"`
	Milestones int     `json:"milestones"`
	Attendees  int     `json:"attendees"`
}

// groupSet accumulates rows keyed by group while remembering first-seen order.
type groupSet struct {
	keys []string
	rows map[string]*GroupRow
}

func newGroupSet() *groupSet {
	return &groupSet{rows: make(map[string]*GroupRow)}
}

func (g *groupSet) add(key string, row OrderResult) {
	acc, ok := g.rows[key]
	if !ok {
		acc = &GroupRow{Key: key}
		g.rows[key] = acc
		g.keys = append(g.keys, key)
	}
	acc.Revenue += row.Revenue
	acc.Cost += row.Cost
	acc.Orders++
	acc.Milestones += row.Milestones
	acc.Attendees += row.Attendees
}

func (g *groupSet) list() []GroupRow {
	out := make([]GroupRow, 0, len(g.keys))
	for _, key := range g.keys {
		row := *g.rows[key]
		row.Margin = row.Revenue - row.Cost
		row.MarginPct = MarginPct(row.Margin, row.Revenue)
		out = append(out, row)
	}
	return out
}

// RankByMargin sorts rows by descending margin. Equal margins keep their input order.
func RankByMargin(rows []GroupRow) []GroupRow {
	out := make([]GroupRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Margin > out[j].Margin
	})
	return out
}
