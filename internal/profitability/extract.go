package profitability

// ExtractCost sums the closing amounts of every cost order of the category
// that belongs to orderID. A category without matches yields 0.
func ExtractCost(cat Category, orderID string, orders []CostOrder) float64 {
	var total float64
	for _, o := range orders {
		if o.OrderID() != orderID || o.Category() != cat {
			continue
		}
		total += o.Amount()
	}
	return total
}

// ExtractPlanned is ExtractCost over the planned figures.
func ExtractPlanned(cat Category, orderID string, orders []CostOrder) float64 {
	var total float64
	for _, o := range orders {
		if o.OrderID() != orderID || o.Category() != cat {
			continue
		}
		total += o.PlannedAmount()
	}
	return total
}
