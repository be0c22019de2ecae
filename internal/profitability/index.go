package profitability

// Index groups cost orders, briefings and milestones by service order so an
// aggregation pass reads each record once.
type Index struct {
	costs      map[string][]CostOrder
	briefings  map[string][]BriefingItem
	milestones map[string][]Milestone
	billing    map[string]float64
	orphans    int
}

// NewIndex builds the lookup tables for a snapshot. Adjustments that reference
// an unknown service order are dropped and counted.
func NewIndex(s Snapshot) *Index {
	known := make(map[string]struct{}, len(s.Orders))
	for _, o := range s.Orders {
		known[o.ID] = struct{}{}
	}

	idx := &Index{
		costs:      make(map[string][]CostOrder, len(s.Orders)),
		briefings:  make(map[string][]BriefingItem, len(s.Briefings)),
		milestones: make(map[string][]Milestone, len(s.Milestones)),
		billing:    make(map[string]float64, len(s.BillingAdjustments)),
	}
	for _, c := range s.CostOrders {
		if _, ok := c.(Adjustment); ok {
			if _, exists := known[c.OrderID()]; !exists {
				idx.orphans++
				continue
			}
		}
		idx.costs[c.OrderID()] = append(idx.costs[c.OrderID()], c)
	}
	for _, b := range s.Briefings {
		idx.briefings[b.OrderID] = append(idx.briefings[b.OrderID], b.Items...)
	}
	for _, m := range s.Milestones {
		idx.milestones[m.OrderID] = append(idx.milestones[m.OrderID], m)
	}
	for _, a := range s.BillingAdjustments {
		idx.billing[a.Order] += a.Amount
	}
	return idx
}

// CostOrders returns the cost orders attached to orderID.
func (i *Index) CostOrders(orderID string) []CostOrder {
	return i.costs[orderID]
}

// Briefing returns the briefing items of orderID.
func (i *Index) Briefing(orderID string) []BriefingItem {
	return i.briefings[orderID]
}

// Milestones returns the delivery milestones of orderID.
func (i *Index) Milestones(orderID string) []Milestone {
	return i.milestones[orderID]
}

// BillingAdjustment returns the net manual correction of the billing of orderID.
func (i *Index) BillingAdjustment(orderID string) float64 {
	return i.billing[orderID]
}

// Orphans reports how many adjustments were dropped for lack of a parent order.
func (i *Index) Orphans() int {
	return i.orphans
}

// Costs returns the closing cost per category for order, including the costs
// derived from delivery milestones.
func (i *Index) Costs(order ServiceOrder) CategoryAmounts {
	out := ZeroAmounts()
	for _, c := range i.costs[order.ID] {
		out.Add(c.Category(), c.Amount())
	}
	if order.Vertical == VerticalDeliveries {
		out.Merge(MilestoneCosts(i.milestones[order.ID]))
	}
	return out
}

// PlannedCosts mirrors Costs using planned figures.
func (i *Index) PlannedCosts(order ServiceOrder) CategoryAmounts {
	out := ZeroAmounts()
	for _, c := range i.costs[order.ID] {
		out.Add(c.Category(), c.PlannedAmount())
	}
	if order.Vertical == VerticalDeliveries {
		out.Merge(MilestoneCosts(i.milestones[order.ID]))
	}
	return out
}
