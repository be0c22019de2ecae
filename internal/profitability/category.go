package profitability

import "strings"

// Category identifies a cost bucket of the operating account.
type Category string

const (
	CategoryGastronomy    Category = "gastronomy"
	CategoryCellar        Category = "cellar"
	CategoryConsumables   Category = "consumables"
	CategoryIce           Category = "ice"
	CategoryWarehouse     Category = "warehouse"
	CategoryRental        Category = "rental"
	CategoryTransport     Category = "transport"
	CategoryDecor         Category = "decor"
	CategoryAtypical      Category = "atypical"
	CategoryInternalStaff Category = "internal_staff"
	CategoryExternalStaff Category = "external_staff"
	CategoryMenuTrial     Category = "menu_trial"
)

// Categories lists every cost category in statement order.
var Categories = []Category{
	CategoryGastronomy,
	CategoryCellar,
	CategoryConsumables,
	CategoryIce,
	CategoryWarehouse,
	CategoryRental,
	CategoryTransport,
	CategoryDecor,
	CategoryAtypical,
	CategoryInternalStaff,
	CategoryExternalStaff,
	CategoryMenuTrial,
}

var categoryLabels = map[Category]string{
	CategoryGastronomy:    "Gastronomía",
	CategoryCellar:        "Bodega",
	CategoryConsumables:   "Consumibles (Bio)",
	CategoryIce:           "Hielo",
	CategoryWarehouse:     "Almacén",
	CategoryRental:        "Alquiler material",
	CategoryTransport:     "Transporte",
	CategoryDecor:         "Decoración",
	CategoryAtypical:      "Atípicos",
	CategoryInternalStaff: "Personal MICE",
	CategoryExternalStaff: "Personal externo",
	CategoryMenuTrial:     "Coste prueba de menú",
}

// Label returns the display label used in exports.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// MaterialCategory maps a material order subtype onto its cost category.
func MaterialCategory(kind string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "BODEGA":
		return CategoryCellar, true
	case "BIO":
		return CategoryConsumables, true
	case "ALMACEN", "ALMACÉN":
		return CategoryWarehouse, true
	case "ALQUILER":
		return CategoryRental, true
	default:
		return "", false
	}
}

// CategoryAmounts holds one figure per category.
type CategoryAmounts map[Category]float64

// Add accumulates v into the category bucket.
func (a CategoryAmounts) Add(cat Category, v float64) {
	a[cat] += v
}

// Total sums every category in statement order.
func (a CategoryAmounts) Total() float64 {
	var total float64
	for _, cat := range Categories {
		total += a[cat]
	}
	return total
}

// Merge adds every bucket of other into a.
func (a CategoryAmounts) Merge(other CategoryAmounts) {
	for cat, v := range other {
		a[cat] += v
	}
}

// Clone returns an independent copy.
func (a CategoryAmounts) Clone() CategoryAmounts {
	out := make(CategoryAmounts, len(a))
	for cat, v := range a {
		out[cat] = v
	}
	return out
}

// ZeroAmounts returns a map with every category present and set to zero.
func ZeroAmounts() CategoryAmounts {
	out := make(CategoryAmounts, len(Categories))
	for _, cat := range Categories {
		out[cat] = 0
	}
	return out
}
