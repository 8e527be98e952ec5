package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fscore-cli/internal/model"
)

func sampleResults() []model.ScoreResult {
	pe := 12.345
	mcap := int64(150_000_000_000)
	asof := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	return []model.ScoreResult{
		{
			Ticker: "SAP", Country: "DE", Name: "SAP SE", Score: model.NewScore(8),
			TrailingPE: &pe, MarketCap: &mcap, LastAsofDate: &asof, Sector: "Technology",
		},
		{Ticker: "VOD", Country: "UK", Name: "Vodafone Group", Score: model.NewScore(0)},
		{Ticker: "BMW", Country: "DE", Name: "Bayerische Motoren Werke", Score: model.NoData()},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTop(t *testing.T) {
	results := sampleResults()
	assert.Len(t, Top(results, 2), 2)
	assert.Len(t, Top(results, 0), 3)
	assert.Len(t, Top(results, 10), 3)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResults()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "RANK")
	assert.Regexp(t, `^1\s+SAP\s+DE\s+SAP SE\s+8\s+12\.35\s+2023-12-31\s+Technology$`, lines[2])
	assert.Regexp(t, `^2\s+VOD\s+UK\s+Vodafone Group\s+0`, lines[3])
	assert.Regexp(t, `^-\s+BMW\s+DE\s+Bayerische Motoren Werke\s+No Data`, lines[4])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{"1", "SAP", "DE", "SAP SE", "8", "12.35", "2023-12-31"}, records[1][:7])
	assert.Equal(t, "150000000000", records[1][12])
	assert.Equal(t, "No Data", records[3][4])
	assert.Equal(t, "-", records[3][0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleResults()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "ticker", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "SAP", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "No Data", sheet.Rows[3].Cells[4].String())

	score, err := sheet.Rows[1].Cells[4].Int()
	require.NoError(t, err)
	assert.Equal(t, 8, score)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
