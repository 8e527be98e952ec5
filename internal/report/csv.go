package report

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/model"
)

// WriteCSV writes a header row followed by one row per result.
func WriteCSV(w io.Writer, results []model.ScoreResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for i, r := range results {
		if err := cw.Write(Row(i, r)); err != nil {
			return eris.Wrapf(err, "report: write csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
