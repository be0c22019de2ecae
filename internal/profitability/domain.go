package profitability

import (
	"errors"
	"time"
)

// Status enumerates the lifecycle of a service order.
type Status string

const (
	// StatusDraft marks an order still being captured.
	StatusDraft Status = "BORRADOR"
	// StatusPending marks an order awaiting client confirmation.
	StatusPending Status = "PENDIENTE"
	// StatusConfirmed marks a signed order; only these count towards profitability.
	StatusConfirmed Status = "CONFIRMADO"
	// StatusExecuted marks an order whose service already took place.
	StatusExecuted Status = "EJECUTADO"
	// StatusCancelled marks an order that no longer accrues costs.
	StatusCancelled Status = "ANULADO"
)

// Vertical distinguishes the two business lines.
type Vertical string

const (
	// VerticalCatering is the full-service events line.
	VerticalCatering Vertical = "CATERING"
	// VerticalDeliveries is the direct MICE delivery line.
	VerticalDeliveries Vertical = "ENTREGAS"
)

// Tariff selects the delivery surcharge table.
type Tariff string

const (
	// TariffStandard is the regular company tariff.
	TariffStandard Tariff = "EMPRESA"
	// TariffIFEMA is the venue tariff used at IFEMA.
	TariffIFEMA Tariff = "IFEMA"
)

// ServiceOrder is one catering event or delivery contract.
type ServiceOrder struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Client           string    `json:"client"`
	Space            string    `json:"space"`
	Salesperson      string    `json:"salesperson"`
	Maitre           string    `json:"maitre"`
	Status           Status    `json:"status"`
	Vertical         Vertical  `json:"vertical"`
	Tariff           Tariff    `json:"tariff"`
	Attendees        int       `json:"attendees"`
	GrossBilling     float64   `json:"gross_billing"`
	AgencyPct        float64   `json:"agency_pct"`
	VenuePct         float64   `json:"venue_pct"`
	AgencyCommission float64   `json:"agency_commission"`
	VenueCommission  float64   `json:"venue_commission"`
	BudgetTemplateID string    `json:"budget_template_id,omitempty"`
}

// BriefingItem is a sub-service of a catering order.
type BriefingItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Attendees   int     `json:"attendees"`
	UnitPrice   float64 `json:"unit_price"`
	FixedAmount float64 `json:"fixed_amount"`
}

// Briefing groups the commercial sub-services of one order.
type Briefing struct {
	OrderID string         `json:"order_id"`
	Items   []BriefingItem `json:"items"`
}

// MilestoneItem is a product line delivered on a milestone.
type MilestoneItem struct {
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	UnitPriceIFEMA float64 `json:"unit_price_ifema"`
	UnitCost       float64 `json:"unit_cost"`
}

// Milestone is one delivery drop within a delivery order.
type Milestone struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Date        time.Time       `json:"date"`
	Porters     int             `json:"porters"`
	WaiterHours float64         `json:"waiter_hours"`
	Items       []MilestoneItem `json:"items"`
}

// BillingAdjustment is a signed manual correction of the billed amount of an
// order, entered by the commercial team after the briefing is closed.
type BillingAdjustment struct {
	ID      string  `json:"id"`
	Order   string  `json:"order_id"`
	Concept string  `json:"concept"`
	Amount  float64 `json:"amount"`
}

// Snapshot is an immutable copy of every record needed for one aggregation pass.
type Snapshot struct {
	Orders             []ServiceOrder
	CostOrders         []CostOrder
	Briefings          []Briefing
	Milestones         []Milestone
	BillingAdjustments []BillingAdjustment
}

var (
	// ErrOrderNotFound occurs when a service order is missing from the snapshot.
	ErrOrderNotFound = errors.New("profitability: service order not found")
	// ErrInvalidRange occurs when a date range is empty or inverted.
	ErrInvalidRange = errors.New("profitability: invalid date range")
	// ErrUnknownGroup occurs when a group key name is not supported.
	ErrUnknownGroup = errors.New("profitability: unknown group key")
)
