package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/report"
	"github.com/sells-group/fscore-cli/internal/scorer"
)

var (
	scoreFormat   string
	scoreOutput   string
	scoreTop      int
	scoreMinScore int
	scoreNoSave   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [TICKER-COUNTRY ...]",
	Short: "Compute Piotroski F-scores and replace the stored score view",
	Long:  "Scores the given symbols, or every symbol loaded in all snapshot tables when none are given. Symbols are written as TICKER-COUNTRY, e.g. SAP-DE.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(scoreFormat)
		if err != nil {
			return err
		}
		if format == report.FormatXLSX && scoreOutput == "" {
			return eris.New("--output is required for xlsx")
		}
		symbols, err := parseSymbols(args)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "score")
		if err != nil {
			return err
		}
		defer env.Close()

		var results []model.ScoreResult
		if scoreNoSave {
			results, err = env.Scorer.Score(ctx, symbols)
		} else {
			err = recordRun(ctx, env.Store, model.RunKindScore, func(ctx context.Context) (map[string]any, error) {
				results, err = env.Scorer.Run(ctx, symbols)
				if err != nil {
					return nil, err
				}
				return map[string]any{"scored": len(results)}, nil
			})
		}
		if err != nil {
			return err
		}

		results = report.Top(scorer.Select(results, scoreMinScore), scoreTop)
		return writeReport(cmd.OutOrStdout(), scoreOutput, format, results)
	},
}

func parseSymbols(args []string) ([]model.Symbol, error) {
	out := make([]model.Symbol, 0, len(args))
	for _, a := range args {
		sym, err := model.ParseSymbolKey(a)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

// writeReport writes to path when set, otherwise to stdout.
func writeReport(stdout io.Writer, path string, format report.Format, results []model.ScoreResult) error {
	if path == "" {
		return report.Write(stdout, format, results)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := report.Write(f, format, results); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "table", "output format: table, csv or xlsx")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "write the report to this file")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 0, "print at most N rows (0 = all)")
	scoreCmd.Flags().IntVar(&scoreMinScore, "min-score", 0, "only print scored rows with at least this score")
	scoreCmd.Flags().BoolVar(&scoreNoSave, "no-save", false, "print scores without replacing the stored view")
	rootCmd.AddCommand(scoreCmd)
}
