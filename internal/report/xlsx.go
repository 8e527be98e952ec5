package report

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fscore-cli/internal/model"
)

// SheetName is the worksheet holding the score export.
const SheetName = "Piotroski"

// numeric export columns, written as number cells.
var numericColumns = map[string]bool{
	"rank":                    true,
	"piotroski_f_score":       true,
	"trailing_pe":             true,
	"dividend_rate":           true,
	"volume":                  true,
	"market_cap":              true,
	"two_hundred_day_average": true,
}

// WriteXLSX writes a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, results []model.ScoreResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}
	for i, r := range results {
		row := sheet.AddRow()
		for j, v := range Row(i, r) {
			cell := row.AddCell()
			if numericColumns[Columns[j]] {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}
