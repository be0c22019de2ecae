package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

func sampleResult() profitability.Result {
	costs := profitability.ZeroAmounts()
	costs[profitability.CategoryGastronomy] = 300
	costs[profitability.CategoryExternalStaff] = 140
	return profitability.Result{
		Rows: []profitability.OrderResult{{
			OrderID:         "o-1",
			Number:          "OS-1",
			Client:          "=HYPERLINK(\"x\")",
			Space:           "Palacio",
			Vertical:        profitability.VerticalCatering,
			StartDate:       "2024-03-02",
			Revenue:         1000,
			Cost:            440,
			Margin:          560,
			MarginPct:       0.56,
			CostsByCategory: costs,
			Attendees:       80,
		}},
		Totals: profitability.Totals{
			Revenue: 1000, Cost: 440, Margin: 560, MarginPct: 0.56,
			Orders: 1, Attendees: 80, CostsByCategory: costs,
		},
		Groups: []profitability.GroupRow{{Key: "Palacio", Revenue: 1000, Cost: 440, Margin: 560, MarginPct: 0.56, Orders: 1}},
	}
}

func TestWriteReportCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteReportCSV(buf, sampleResult()))

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, len(orderHeader)+len(profitability.Categories), len(header))
	assert.Equal(t, profitability.CategoryGastronomy.Label(), header[len(orderHeader)])

	row := records[1]
	assert.Equal(t, "OS-1", row[0])
	assert.Equal(t, "'=HYPERLINK(\"x\")", row[1])
	assert.Equal(t, "1000.00", row[7])
	assert.Equal(t, "56.00%", row[10])
	assert.Equal(t, "300.00", row[len(orderHeader)])

	assert.Equal(t, "TOTAL", records[2][0])
	assert.Equal(t, "1 pedidos", records[2][1])
}

func TestWriteGroupsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteGroupsCSV(buf, sampleResult().Groups))
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Palacio", "1", "1000.00", "440.00", "560.00", "56.00%"}, records[1])
}

func TestWriteReportXLSX(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteReportXLSX(buf, sampleResult(), "Marzo 2024"))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetOrders, sheetGroups}, f.GetSheetList())
	title, _ := f.GetCellValue(sheetOrders, "A1")
	assert.Equal(t, "Marzo 2024", title)
	number, _ := f.GetCellValue(sheetOrders, "A4")
	assert.Equal(t, "OS-1", number)
	total, _ := f.GetCellValue(sheetOrders, "A5")
	assert.Equal(t, "TOTAL", total)

	rows, err := f.GetRows(sheetGroups)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Palacio", rows[1][0])
}

func TestWriteReportXLSXWithoutGroups(t *testing.T) {
	res := sampleResult()
	res.Groups = nil
	buf := &bytes.Buffer{}
	require.NoError(t, WriteReportXLSX(buf, res, ""))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetOrders}, f.GetSheetList())
}
