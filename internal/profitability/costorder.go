package profitability

// CostOrder is a department expense linked to one service order. The set of
// implementations is closed: FlatCost, StaffShift, MenuTrial, Adjustment and
// MaterialReturn.
type CostOrder interface {
	OrderID() string
	Category() Category
	// Amount is the closing figure booked against the order.
	Amount() float64
	// PlannedAmount is the figure budgeted before the service.
	PlannedAmount() float64
	costOrder()
}

// FlatCost is a cost order carrying a single total.
type FlatCost struct {
	ID      string
	Order   string
	Cat     Category
	Total   float64
	Concept string
}

func (c FlatCost) OrderID() string        { return c.Order }
func (c FlatCost) Category() Category     { return c.Cat }
func (c FlatCost) Amount() float64        { return c.Total }
func (c FlatCost) PlannedAmount() float64 { return c.Total }
func (FlatCost) costOrder()               {}

// StaffShift is an internal or external staff assignment priced per hour.
type StaffShift struct {
	ID         string
	Order      string
	External   bool
	Planned    Span
	Actual     Span
	HourlyRate float64
	Quantity   int
}

func (s StaffShift) OrderID() string { return s.Order }

func (s StaffShift) Category() Category {
	if s.External {
		return CategoryExternalStaff
	}
	return CategoryInternalStaff
}

// Amount prices the effective span, preferring recorded clock times.
func (s StaffShift) Amount() float64 {
	return Effective(s.Planned, s.Actual).Hours() * s.HourlyRate * float64(s.headcount())
}

// PlannedAmount prices the planned span only.
func (s StaffShift) PlannedAmount() float64 {
	return s.Planned.Hours() * s.HourlyRate * float64(s.headcount())
}

func (s StaffShift) headcount() int {
	if s.Quantity < 1 {
		return 1
	}
	return s.Quantity
}

func (StaffShift) costOrder() {}

// MenuTrial is the stored cost of a menu tasting for an order.
type MenuTrial struct {
	Order string
	Cost  float64
}

func (m MenuTrial) OrderID() string        { return m.Order }
func (MenuTrial) Category() Category       { return CategoryMenuTrial }
func (m MenuTrial) Amount() float64        { return m.Cost }
func (m MenuTrial) PlannedAmount() float64 { return m.Cost }
func (MenuTrial) costOrder()               {}

// Adjustment is a signed manual correction of the external staff cost.
type Adjustment struct {
	ID      string  `json:"id"`
	Order   string  `json:"order_id"`
	Concept string  `json:"concept"`
	Delta   float64 `json:"amount"`
}

func (a Adjustment) OrderID() string  { return a.Order }
func (Adjustment) Category() Category { return CategoryExternalStaff }
func (a Adjustment) Amount() float64  { return a.Delta }

// PlannedAmount is zero: adjustments only exist after the service.
func (Adjustment) PlannedAmount() float64 { return 0 }
func (Adjustment) costOrder()             {}

// MaterialReturn is one material line counted back from an event. Units sent
// and not returned are priced as a loss that lowers the closing figure of the
// material category; the planned figure is untouched.
type MaterialReturn struct {
	Order    string
	Cat      Category
	ItemCode string
	Sent     float64
	Returned float64
	Price    float64
}

// Loss prices the missing units, or 0 when everything came back.
func (m MaterialReturn) Loss() float64 {
	if m.Sent <= m.Returned {
		return 0
	}
	return (m.Sent - m.Returned) * m.Price
}

func (m MaterialReturn) OrderID() string    { return m.Order }
func (m MaterialReturn) Category() Category { return m.Cat }
func (m MaterialReturn) Amount() float64    { return -m.Loss() }

// PlannedAmount is zero: returns are counted after the service.
func (MaterialReturn) PlannedAmount() float64 { return 0 }
func (MaterialReturn) costOrder()             {}
