// Package export writes profitability reports as CSV and XLSX workbooks.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

// orderHeader lists the fixed columns before one column per cost category.
var orderHeader = []string{"Pedido", "Cliente", "Espacio", "Vertical", "Fecha", "Pax", "Hitos", "Ingresos", "Coste", "Margen", "Margen %"}

var groupHeader = []string{"Grupo", "Pedidos", "Ingresos", "Coste", "Margen", "Margen %"}

// WriteReportCSV emits one row per service order followed by a totals row.
func WriteReportCSV(w io.Writer, res profitability.Result) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := append(append([]string{}, orderHeader...), categoryLabels()...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range res.Rows {
		if err := writer.Write(orderRecord(row)); err != nil {
			return err
		}
	}
	if err := writer.Write(totalsRecord(res.Totals)); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteGroupsCSV emits the grouped breakdown.
func WriteGroupsCSV(w io.Writer, groups []profitability.GroupRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(groupHeader); err != nil {
		return err
	}
	for _, g := range groups {
		if err := writer.Write(groupRecord(g)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func orderRecord(row profitability.OrderResult) []string {
	record := []string{
		sanitize(row.Number),
		sanitize(row.Client),
		sanitize(row.Space),
		string(row.Vertical),
		row.StartDate,
		strconv.Itoa(row.Attendees),
		strconv.Itoa(row.Milestones),
		shared.FormatAmount(row.Revenue),
		shared.FormatAmount(row.Cost),
		shared.FormatAmount(row.Margin),
		shared.FormatPct(row.MarginPct),
	}
	for _, cat := range profitability.Categories {
		record = append(record, shared.FormatAmount(row.CostsByCategory[cat]))
	}
	return record
}

func totalsRecord(t profitability.Totals) []string {
	record := []string{
		"TOTAL", strconv.Itoa(t.Orders) + " pedidos", "", "", "",
		strconv.Itoa(t.Attendees),
		strconv.Itoa(t.Milestones),
		shared.FormatAmount(t.Revenue),
		shared.FormatAmount(t.Cost),
		shared.FormatAmount(t.Margin),
		shared.FormatPct(t.MarginPct),
	}
	for _, cat := range profitability.Categories {
		record = append(record, shared.FormatAmount(t.CostsByCategory[cat]))
	}
	return record
}

func groupRecord(g profitability.GroupRow) []string {
	return []string{
		sanitize(g.Key),
		strconv.Itoa(g.Orders),
		shared.FormatAmount(g.Revenue),
		shared.FormatAmount(g.Cost),
		shared.FormatAmount(g.Margin),
		shared.FormatPct(g.MarginPct),
	}
}

func categoryLabels() []string {
	out := make([]string, len(profitability.Categories))
	for i, cat := range profitability.Categories {
		out[i] = cat.Label()
	}
	return out
}

// sanitize neutralises spreadsheet formula prefixes in free text.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}
