package shared

import "github.com/shopspring/decimal"

// Round2 rounds an amount to cents, half away from zero.
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// Round4 is used for ratios that are shown as percentages with two decimals.
func Round4(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return out
}

// FormatAmount renders an amount with two fixed decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPct renders a fraction as a percentage with two decimals.
func FormatPct(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
