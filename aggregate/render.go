package aggregate

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/tealeg/xlsx/v3"
)

type kind int

const (
	kindText kind = iota
	kindCount
	kindMoney
	kindPercent
)

type column struct {
	header string
	kind   kind
	text   func(Merged) string
	number func(Merged) float64
}

func countCol(header string, f func(Merged) int64) column {
	return column{header: header, kind: kindCount, number: func(m Merged) float64 { return float64(f(m)) }}
}

var summaryColumns = func() []column {
	cols := []column{
		{header: "Customer", kind: kindText, text: func(m Merged) string { return m.CustomerID }},
		{header: "Name", kind: kindText, text: func(m Merged) string { return m.Name }},
		{header: "Billing Type", kind: kindText, text: func(m Merged) string { return m.BillingType }},
		{header: "Wallet Balance", kind: kindMoney, number: func(m Merged) float64 { return m.Balance }},
		countCol("Success (MTD)", func(m Merged) int64 { return m.SuccessCount }),
		countCol("Failure (MTD)", func(m Merged) int64 { return m.FailureCount }),
		countCol("Total (MTD)", func(m Merged) int64 { return m.TotalCount }),
		{header: "Success Rate (MTD)", kind: kindPercent, number: Merged.SuccessRate},
	}
	for i := 0; i < Weeks; i++ {
		w := i
		cols = append(cols, countCol(fmt.Sprintf("Week %d", w+1), func(m Merged) int64 { return m.Week[w] }))
	}
	return append(cols,
		countCol("Success (FY)", func(m Merged) int64 { return m.SuccessCountFY }),
		countCol("Failure (FY)", func(m Merged) int64 { return m.FailureCountFY }),
		countCol("Total (FY)", func(m Merged) int64 { return m.TotalCountFY }),
	)
}()

// Headers des colonnes de la synthèse.
func Headers() []string {
	out := make([]string, len(summaryColumns))
	for i, c := range summaryColumns {
		out[i] = c.header
	}
	return out
}

// Totals somme les colonnes numériques; les colonnes texte et pourcentage restent vides.
func Totals(rows []Merged) []string {
	out := make([]string, len(summaryColumns))
	for i, c := range summaryColumns {
		switch c.kind {
		case kindCount, kindMoney:
			var sum float64
			for _, r := range rows {
				sum += c.number(r)
			}
			out[i] = c.format(sum)
		}
	}
	out[0] = "Total"
	return out
}

func (c column) format(v float64) string {
	switch c.kind {
	case kindMoney:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case kindPercent:
		return strconv.FormatFloat(v, 'f', 2, 64) + "%"
	}
	return strconv.FormatInt(int64(v), 10)
}

func (c column) cell(m Merged) string {
	if c.kind == kindText {
		return c.text(m)
	}
	return c.format(c.number(m))
}

// RenderWorkbook produit le classeur joint à l'email: une feuille, une ligne de totaux.
func RenderWorkbook(rows []Merged) ([]byte, error) {
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Summary")
	if err != nil {
		return nil, err
	}
	header := sh.AddRow()
	for _, h := range Headers() {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sh.AddRow()
		for _, c := range summaryColumns {
			cell := row.AddCell()
			switch c.kind {
			case kindText:
				cell.SetString(c.text(r))
			case kindCount:
				cell.SetInt64(int64(c.number(r)))
			case kindMoney:
				cell.SetFloatWithFormat(c.number(r), "0.00")
			case kindPercent:
				cell.SetString(c.format(c.number(r)))
			}
		}
	}
	totals := sh.AddRow()
	for i, v := range Totals(rows) {
		cell := totals.AddCell()
		switch summaryColumns[i].kind {
		case kindCount:
			n, _ := strconv.ParseInt(v, 10, 64)
			cell.SetInt64(n)
		case kindMoney:
			x, _ := strconv.ParseFloat(v, 64)
			cell.SetFloatWithFormat(x, "0.00")
		default:
			cell.SetString(v)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write summary workbook: %w", err)
	}
	return buf.Bytes(), nil
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<html><body>
<h3>{{.Title}}</h3>
<table border="1" cellpadding="4" cellspacing="0" style="border-collapse:collapse;font-family:Arial,sans-serif;font-size:12px">
<tr>{{range .Headers}}<th style="background:#f0f0f0">{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}<tr style="font-weight:bold">{{range .Totals}}<td>{{.}}</td>{{end}}</tr>
</table>
</body></html>`))

// RenderHTML produit le tableau du corps de l'email, parallèle au classeur.
func RenderHTML(title string, rows []Merged) (string, error) {
	data := struct {
		Title   string
		Headers []string
		Rows    [][]string
		Totals  []string
	}{Title: title, Headers: Headers(), Totals: Totals(rows)}
	for _, r := range rows {
		line := make([]string, len(summaryColumns))
		for i, c := range summaryColumns {
			line[i] = c.cell(r)
		}
		data.Rows = append(data.Rows, line)
	}
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
