package aggregate

import (
	"testing"

	"usage-reports/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func byID(rows []Merged) map[string]Merged {
	out := make(map[string]Merged, len(rows))
	for _, r := range rows {
		out[r.CustomerID] = r
	}
	return out
}

func TestMergeFYOnlyIdentity(t *testing.T) {
	// Scénario D
	rows := Merge([]FYRecord{{CustomerID: "a@x.com", TotalCountFY: 120, SuccessCountFY: 100, FailureCountFY: 20}}, nil)
	require.Len(t, rows, 1)
	a := rows[0]
	assert.Zero(t, a.SuccessCount)
	assert.Zero(t, a.TotalCount)
	assert.Equal(t, [Weeks]int64{}, a.Week)
	assert.EqualValues(t, 120, a.TotalCountFY)
}

func TestMergeLaw(t *testing.T) {
	fy := []FYRecord{
		{CustomerID: "both", SuccessCountFY: 90, FailureCountFY: 10, TotalCountFY: 100},
		{CustomerID: "fy-only", SuccessCountFY: 5, TotalCountFY: 5},
	}
	mtd := []MTDRecord{
		{CustomerID: "both", SuccessCount: 8, FailureCount: 2, TotalCount: 10, Week: [Weeks]int64{4, 6}},
		{CustomerID: "mtd-only", SuccessCount: 3, TotalCount: 3, Week: [Weeks]int64{0, 0, 3}},
	}
	rows := Merge(fy, mtd)
	assert.GreaterOrEqual(t, len(rows), 2)
	require.Len(t, rows, 3)

	m := byID(rows)
	assert.EqualValues(t, 100, m["both"].TotalCountFY)
	assert.EqualValues(t, 10, m["both"].TotalCount)
	assert.Equal(t, [Weeks]int64{4, 6}, m["both"].Week)

	assert.Zero(t, m["fy-only"].TotalCount)
	assert.EqualValues(t, 5, m["fy-only"].TotalCountFY)

	assert.Zero(t, m["mtd-only"].TotalCountFY)
	assert.EqualValues(t, 3, m["mtd-only"].TotalCount)
	assert.EqualValues(t, 3, m["mtd-only"].Week[2])
}

func TestSortByTotalAndAnnotate(t *testing.T) {
	rows := []Merged{{CustomerID: "a", TotalCount: 1}, {CustomerID: "b", TotalCount: 30}, {CustomerID: "c", TotalCount: 7}}
	SortByTotal(rows)
	assert.Equal(t, "b", rows[0].CustomerID)
	assert.Equal(t, "c", rows[1].CustomerID)
	assert.Equal(t, "a", rows[2].CustomerID)

	Annotate(rows, map[string]billing.Profile{"c": {CustomerID: "c", Name: "Cee", BillingType: billing.Prepaid, Balance: 12.5}})
	assert.Equal(t, "Cee", rows[1].Name)
	assert.Empty(t, rows[0].Name)
}

func TestTotalsRow(t *testing.T) {
	rows := []Merged{
		{CustomerID: "a", Name: "A", Balance: 10.25, SuccessCount: 3, FailureCount: 1, TotalCount: 4, TotalCountFY: 40},
		{CustomerID: "b", Name: "B", Balance: 1, SuccessCount: 1, TotalCount: 1, TotalCountFY: 2, Week: [Weeks]int64{1}},
	}
	totals := Totals(rows)
	headers := Headers()
	require.Len(t, totals, len(headers))
	col := func(name string) string {
		for i, h := range headers {
			if h == name {
				return totals[i]
			}
		}
		t.Fatalf("no column %s", name)
		return ""
	}
	assert.Equal(t, "Total", col("Customer"))
	assert.Equal(t, "", col("Name"))
	assert.Equal(t, "11.25", col("Wallet Balance"))
	assert.Equal(t, "5", col("Total (MTD)"))
	assert.Equal(t, "", col("Success Rate (MTD)"))
	assert.Equal(t, "1", col("Week 1"))
	assert.Equal(t, "42", col("Total (FY)"))
}

func TestRenderWorkbookAndHTML(t *testing.T) {
	rows := []Merged{{CustomerID: "a@x.com", Name: "<Acme>", SuccessCount: 1, TotalCount: 2, TotalCountFY: 9}}

	data, err := RenderWorkbook(rows)
	require.NoError(t, err)
	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sh := f.Sheets[0]
	assert.Equal(t, "Summary", sh.Name)
	assert.Equal(t, 3, sh.MaxRow)
	c, err := sh.Cell(2, 0)
	require.NoError(t, err)
	assert.Equal(t, "Total", c.Value)
	c, err = sh.Cell(1, 7)
	require.NoError(t, err)
	assert.Equal(t, "50.00%", c.Value)

	html, err := RenderHTML("Daily API usage summary - 2025-07-16", rows)
	require.NoError(t, err)
	assert.Contains(t, html, "<th style=\"background:#f0f0f0\">Total (FY)</th>")
	assert.Contains(t, html, "&lt;Acme&gt;")
	assert.Contains(t, html, "<td>Total</td>")
}
