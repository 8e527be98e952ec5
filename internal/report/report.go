// Package report renders ranked score results as a terminal table, CSV or
// an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat parses a case-insensitive format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (valid: table, csv, xlsx)", s)
	}
}

// Columns is the header of the CSV and XLSX exports.
var Columns = []string{
	"rank", "ticker", "country", "name", "piotroski_f_score", "trailing_pe",
	"last_asof_date", "industry", "sector", "currency", "dividend_rate", "volume",
	"market_cap", "two_hundred_day_average", "website", "long_business_summary",
}

// Top returns at most n results. n <= 0 returns all.
func Top(results []model.ScoreResult, n int) []model.ScoreResult {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// Write renders results to w in format.
func Write(w io.Writer, format Format, results []model.ScoreResult) error {
	switch format {
	case FormatTable, "":
		return WriteTable(w, results)
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatXLSX:
		return WriteXLSX(w, results)
	}
	return eris.Errorf("report: unknown format %q", format)
}

// WriteTable prints a compact aligned table. No Data rows carry no rank.
func WriteTable(w io.Writer, results []model.ScoreResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tTICKER\tCOUNTRY\tNAME\tSCORE\tP/E\tAS OF\tSECTOR")
	_, _ = fmt.Fprintln(tw, "----\t------\t-------\t----\t-----\t---\t-----\t------")
	for i, r := range results {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rank(i, r), r.Ticker, r.Country, truncate(r.Name, 32), r.Score,
			float(r.TrailingPE), date(r), r.Sector)
	}
	return eris.Wrap(tw.Flush(), "report: write table")
}

// Row returns the export cells of the result at position i.
func Row(i int, r model.ScoreResult) []string {
	var score string
	if r.Score.Valid {
		score = strconv.Itoa(r.Score.Value)
	} else {
		score = model.NoDataLabel
	}
	var marketCap string
	if r.MarketCap != nil {
		marketCap = strconv.FormatInt(*r.MarketCap, 10)
	}
	return []string{
		rank(i, r), r.Ticker, r.Country, r.Name, score, float(r.TrailingPE),
		date(r), r.Industry, r.Sector, r.Currency, float(r.DividendRate), float(r.Volume),
		marketCap, float(r.TwoHundredDayAverage), r.Website, r.LongBusinessSummary,
	}
}

func rank(i int, r model.ScoreResult) string {
	if !r.Score.Valid {
		return "-"
	}
	return strconv.Itoa(i + 1)
}

func float(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func date(r model.ScoreResult) string {
	if r.LastAsofDate == nil {
		return ""
	}
	return r.LastAsofDate.Format("2006-01-02")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
