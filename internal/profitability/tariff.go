package profitability

// TariffTable holds the surcharges billed per milestone.
type TariffTable struct {
	Porter float64
	Waiter float64
}

var tariffs = map[Tariff]TariffTable{
	TariffStandard: {Porter: 30, Waiter: 36.50},
	TariffIFEMA:    {Porter: 95, Waiter: 44.50},
}

const (
	// WaiterCostPerHour is what the business pays an external waiter.
	WaiterCostPerHour = 17.50
	// MinBilledWaiterHours is the billing floor for any waiter presence.
	MinBilledWaiterHours = 4.0
)

// TariffFor returns the surcharge table, defaulting to the standard tariff.
func TariffFor(t Tariff) TariffTable {
	if table, ok := tariffs[t]; ok {
		return table
	}
	return tariffs[TariffStandard]
}

// BilledWaiterHours applies the four hour floor to any non-zero presence.
func BilledWaiterHours(hours float64) float64 {
	if hours > 0 && hours < MinBilledWaiterHours {
		return MinBilledWaiterHours
	}
	if hours < 0 {
		return 0
	}
	return hours
}

// ItemPrice picks the unit price for the tariff. IFEMA prices fall back to the
// standard price when unset.
func ItemPrice(item MilestoneItem, t Tariff) float64 {
	if t == TariffIFEMA && item.UnitPriceIFEMA > 0 {
		return item.UnitPriceIFEMA
	}
	return item.UnitPrice
}

// MilestoneRevenue is the gross billed for one delivery drop.
func MilestoneRevenue(m Milestone, t Tariff) float64 {
	table := TariffFor(t)
	var products float64
	for _, item := range m.Items {
		products += ItemPrice(item, t) * item.Quantity
	}
	porters := float64(m.Porters) * table.Porter
	waiters := BilledWaiterHours(m.WaiterHours) * table.Waiter
	return products + porters + waiters
}

// DeliveryRevenue sums the gross of every milestone.
func DeliveryRevenue(milestones []Milestone, t Tariff) float64 {
	var total float64
	for _, m := range milestones {
		total += MilestoneRevenue(m, t)
	}
	return total
}

// MilestoneCosts books product cost to gastronomy and waiter hours to external staff.
func MilestoneCosts(milestones []Milestone) CategoryAmounts {
	out := make(CategoryAmounts, 2)
	for _, m := range milestones {
		for _, item := range m.Items {
			out.Add(CategoryGastronomy, item.UnitCost*item.Quantity)
		}
		if m.WaiterHours > 0 {
			out.Add(CategoryExternalStaff, m.WaiterHours*WaiterCostPerHour)
		}
	}
	return out
}
