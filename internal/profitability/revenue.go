package profitability

// Commissions returns the agency and venue commission amounts for gross:
// each side is a percentage of gross plus its stored fixed fee.
func Commissions(gross float64, order ServiceOrder) (agency, venue float64) {
	agency = gross*order.AgencyPct/100 + order.AgencyCommission
	venue = gross*order.VenuePct/100 + order.VenueCommission
	return agency, venue
}

// BriefingGross sums attendees times unit price plus fixed amounts.
func BriefingGross(items []BriefingItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Attendees)*item.UnitPrice + item.FixedAmount
	}
	return total
}

// GrossRevenue returns the billed amount before commissions, commercial
// billing adjustments included.
func (i *Index) GrossRevenue(order ServiceOrder) float64 {
	return i.baseRevenue(order) + i.billing[order.ID]
}

func (i *Index) baseRevenue(order ServiceOrder) float64 {
	if order.Vertical == VerticalDeliveries {
		return DeliveryRevenue(i.milestones[order.ID], order.Tariff)
	}
	if order.GrossBilling != 0 {
		return order.GrossBilling
	}
	return BriefingGross(i.briefings[order.ID])
}

// NetRevenue is gross minus both commissions.
func (i *Index) NetRevenue(order ServiceOrder) float64 {
	return netOf(i.GrossRevenue(order), order)
}

// NetRevenue computes the net of an order from its stored gross billing alone.
func NetRevenue(order ServiceOrder) float64 {
	return netOf(order.GrossBilling, order)
}

func netOf(gross float64, order ServiceOrder) float64 {
	agency, venue := Commissions(gross, order)
	return gross - agency - venue
}

// MarginPct returns margin/revenue as a fraction, or 0 when revenue is not positive.
func MarginPct(margin, revenue float64) float64 {
	if revenue <= 0 {
		return 0
	}
	return margin / revenue
}
