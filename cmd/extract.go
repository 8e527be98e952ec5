package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/fscore-cli/internal/model"
)

var (
	extractUniverse  string
	extractCountries []string
	extractFrequency string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract and load statements for symbols not yet loaded or quarantined",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		freq, err := model.ParseFrequency(firstNonEmpty(extractFrequency, cfg.ETL.Frequency))
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		u, err := env.universe(ctx, firstNonEmpty(extractUniverse, cfg.ETL.UniverseFile), extractCountries)
		if err != nil {
			return err
		}

		return recordRun(ctx, env.Store, model.RunKindExtract, func(ctx context.Context) (map[string]any, error) {
			stats, err := env.orchestrator(freq).Run(ctx, u)
			if err != nil {
				return nil, err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"extract: %d requested, %d already loaded, %d quarantined, %d loaded, %d failed, %d empty, %d rows\n",
				stats.Requested, stats.Existing, stats.Quarantined, stats.Loaded, stats.Failed, stats.Empty, stats.Rows)
			return stats.Map(), nil
		})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractUniverse, "universe", "", "YAML file mapping country codes to tickers (default: stored catalog)")
	extractCmd.Flags().StringSliceVar(&extractCountries, "countries", nil, "restrict the universe to these country codes")
	extractCmd.Flags().StringVar(&extractFrequency, "frequency", "", "statement frequency: annual or quarterly (default from config)")
	rootCmd.AddCommand(extractCmd)
}
