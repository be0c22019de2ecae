package cpr

import (
	"errors"
	"regexp"
	"time"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Department is the cost centre name of the production centre.
const Department = "CPR"

// RequestClosed is the staff request status that makes its cost final.
const RequestClosed = "Cerrado"

// RecipeSale is one recipe line of a gastronomy order.
type RecipeSale struct {
	OrderID         string  `json:"order_id"`
	RecipeID        string  `json:"recipe_id"`
	Quantity        float64 `json:"quantity"`
	SalePrice       float64 `json:"sale_price"`
	RawMaterialCost float64 `json:"raw_material_cost"`
}

// StaffCession is an employee working for a cost centre other than their own.
type StaffCession struct {
	ID             string             `json:"id"`
	Date           time.Time          `json:"date"`
	Employee       string             `json:"employee"`
	HomeDepartment string             `json:"home_department"`
	CostCenter     string             `json:"cost_center"`
	Planned        profitability.Span `json:"planned"`
	Actual         profitability.Span `json:"actual"`
	HourlyRate     float64            `json:"hourly_rate"`
}

// Income reports whether CPR staff was lent to another centre.
func (c StaffCession) Income() bool {
	return c.HomeDepartment == Department && c.CostCenter != Department
}

// Expense reports whether outside staff worked for CPR.
func (c StaffCession) Expense() bool {
	return c.HomeDepartment != Department && c.CostCenter == Department
}

// PlannedAmount prices the planned span.
func (c StaffCession) PlannedAmount() float64 {
	return c.Planned.Hours() * c.HourlyRate
}

// ClosingAmount prices the recorded span, or the planned one when nothing was recorded.
func (c StaffCession) ClosingAmount() float64 {
	hours := c.Actual.Hours()
	if hours == 0 {
		hours = c.Planned.Hours()
	}
	return hours * c.HourlyRate
}

// StaffRequest is support staff requested by CPR from an external provider.
type StaffRequest struct {
	ID          string               `json:"id"`
	ServiceDate time.Time            `json:"service_date"`
	Status      string               `json:"status"`
	Planned     profitability.Span   `json:"planned"`
	Quantity    int                  `json:"quantity"`
	HourlyRate  float64              `json:"hourly_rate"`
	Assigned    []profitability.Span `json:"assigned"`
}

// PlannedAmount prices the planned span for every requested person.
func (r StaffRequest) PlannedAmount() float64 {
	return r.Planned.Hours() * r.HourlyRate * float64(r.Quantity)
}

// ClosingAmount is zero until the request is closed. It then prices the hours
// recorded per assigned person, or the planned hours when nobody was recorded.
func (r StaffRequest) ClosingAmount() float64 {
	if r.Status != RequestClosed {
		return 0
	}
	var hours float64
	if len(r.Assigned) > 0 {
		for _, a := range r.Assigned {
			hours += a.Hours()
		}
	} else {
		hours = r.Planned.Hours() * float64(r.Quantity)
	}
	return hours * r.HourlyRate
}

// FixedCost is a structural monthly cost of the centre.
type FixedCost struct {
	ID            string  `json:"id"`
	Concept       string  `json:"concept" validate:"required,max=120"`
	MonthlyAmount float64 `json:"monthly_amount" validate:"gte=0"`
}

// MonthlyTarget holds budget percentages of net revenue for one month.
type MonthlyTarget struct {
	Month               string  `json:"month"`
	Sales               float64 `json:"sales" validate:"gte=0,lte=100"`
	StaffCessionIncome  float64 `json:"staff_cession_income" validate:"gte=0,lte=100"`
	RawMaterial         float64 `json:"raw_material" validate:"gte=0,lte=100"`
	StaffCessionExpense float64 `json:"staff_cession_expense" validate:"gte=0,lte=100"`
	StaffRequests       float64 `json:"staff_requests" validate:"gte=0,lte=100"`
	Other               float64 `json:"other" validate:"gte=0,lte=100"`
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonth reports whether key is a YYYY-MM month.
func ValidMonth(key string) bool {
	return monthPattern.MatchString(key)
}

// Inputs is the immutable data set of one CPR pass.
type Inputs struct {
	Orders     []profitability.ServiceOrder
	Sales      []RecipeSale
	Cessions   []StaffCession
	Requests   []StaffRequest
	FixedCosts []FixedCost
	Targets    map[string]MonthlyTarget
}

var (
	// ErrInvalidMonth occurs when a month key is not YYYY-MM.
	ErrInvalidMonth = errors.New("cpr: invalid month")
	// ErrInvalidFixedCost occurs when a fixed cost lacks concept or has a negative amount.
	ErrInvalidFixedCost = errors.New("cpr: invalid fixed cost")
)
