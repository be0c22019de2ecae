package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
)

const (
	sheetOrders = "Pedidos"
	sheetGroups = "Agrupado"
)

// WriteReportXLSX writes a workbook with the order rows, the totals row and,
// when present, the grouped breakdown on its own sheet.
func WriteReportXLSX(w io.Writer, res profitability.Result, title string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetOrders); err != nil {
		return fmt.Errorf("set sheet name: %w", err)
	}
	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if title == "" {
		title = "Rentabilidad"
	}
	if err := f.SetCellValue(sheetOrders, "A1", sanitize(title)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetOrders, "A1", "A1", styles.title); err != nil {
		return err
	}

	header := append(append([]string{}, orderHeader...), categoryLabels()...)
	if err := writeRow(f, sheetOrders, 3, toAny(header), styles.header); err != nil {
		return err
	}
	row := 4
	for _, r := range res.Rows {
		values := []any{
			sanitize(r.Number), sanitize(r.Client), sanitize(r.Space), string(r.Vertical), r.StartDate,
			r.Attendees, r.Milestones,
			shared.Round2(r.Revenue), shared.Round2(r.Cost), shared.Round2(r.Margin), r.MarginPct,
		}
		for _, cat := range profitability.Categories {
			values = append(values, shared.Round2(r.CostsByCategory[cat]))
		}
		if err := writeRow(f, sheetOrders, row, values, styles.body); err != nil {
			return err
		}
		row++
	}
	totals := []any{
		"TOTAL", fmt.Sprintf("%d pedidos", res.Totals.Orders), "", "", "",
		res.Totals.Attendees, res.Totals.Milestones,
		shared.Round2(res.Totals.Revenue), shared.Round2(res.Totals.Cost), shared.Round2(res.Totals.Margin), res.Totals.MarginPct,
	}
	for _, cat := range profitability.Categories {
		totals = append(totals, shared.Round2(res.Totals.CostsByCategory[cat]))
	}
	if err := writeRow(f, sheetOrders, row, totals, styles.total); err != nil {
		return err
	}
	if err := formatColumns(f, sheetOrders, len(header)); err != nil {
		return err
	}
	// margin % column
	if err := f.SetCellStyle(sheetOrders, "K4", fmt.Sprintf("K%d", row), styles.pct); err != nil {
		return err
	}
	if err := f.SetPanes(sheetOrders, &excelize.Panes{Freeze: true, YSplit: 3, TopLeftCell: "A4", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if len(res.Groups) > 0 {
		if err := writeGroups(f, res.Groups, styles); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeGroups(f *excelize.File, groups []profitability.GroupRow, styles sheetStyles) error {
	if _, err := f.NewSheet(sheetGroups); err != nil {
		return err
	}
	if err := writeRow(f, sheetGroups, 1, toAny(groupHeader), styles.header); err != nil {
		return err
	}
	for i, g := range groups {
		values := []any{sanitize(g.Key), g.Orders, shared.Round2(g.Revenue), shared.Round2(g.Cost), shared.Round2(g.Margin), g.MarginPct}
		if err := writeRow(f, sheetGroups, i+2, values, styles.body); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetGroups, "A", "A", 32); err != nil {
		return err
	}
	return f.SetCellStyle(sheetGroups, "F2", fmt.Sprintf("F%d", len(groups)+1), styles.pct)
}

type sheetStyles struct {
	title, header, body, total, pct int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var (
		s   sheetStyles
		err error
	)
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, fmt.Errorf("create title style: %w", err)
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorders(),
	}); err != nil {
		return s, fmt.Errorf("create header style: %w", err)
	}
	if s.body, err = f.NewStyle(&excelize.Style{Border: thinBorders(), NumFmt: 4}); err != nil {
		return s, fmt.Errorf("create body style: %w", err)
	}
	if s.total, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thinBorders(), NumFmt: 4}); err != nil {
		return s, fmt.Errorf("create total style: %w", err)
	}
	if s.pct, err = f.NewStyle(&excelize.Style{Border: thinBorders(), NumFmt: 10}); err != nil {
		return s, fmt.Errorf("create pct style: %w", err)
	}
	return s, nil
}

func formatColumns(f *excelize.File, sheet string, n int) error {
	last, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 14); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "C", 28)
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, start, end, style)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "#000000", Style: 1}
	}
	return borders
}
