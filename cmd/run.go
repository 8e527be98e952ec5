package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/catalog"
	"github.com/sells-group/fscore-cli/internal/extract"
	"github.com/sells-group/fscore-cli/internal/model"
)

type catalogSyncer interface {
	Sync(ctx context.Context) (*catalog.Result, error)
}

type extractor interface {
	Run(ctx context.Context, u model.Universe) (*extract.Stats, error)
}

type scoreRunner interface {
	Run(ctx context.Context, symbols []model.Symbol) ([]model.ScoreResult, error)
}

type pipelineOptions struct {
	UniverseFile string
	Countries    []string
	SkipCatalog  bool
	SkipScore    bool
}

type pipelineSteps struct {
	Catalog catalogSyncer
	Extract extractor
	Score   scoreRunner
}

// runPipeline runs catalog sync, extraction and scoring in order. Each
// step is idempotent, so an interrupted run is resumed by running again.
func runPipeline(ctx context.Context, pe *pipelineEnv, steps pipelineSteps, opts pipelineOptions) (map[string]any, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	stats := make(map[string]any)

	if !opts.SkipCatalog {
		res, err := steps.Catalog.Sync(ctx)
		if err != nil {
			return stats, err
		}
		stats["catalog_written"] = res.Written
		stats["catalog_skipped"] = res.Skipped
	}

	u, err := pe.universe(ctx, opts.UniverseFile, opts.Countries)
	if err != nil {
		return stats, err
	}
	stats["universe"] = u.Size()

	es, err := steps.Extract.Run(ctx, u)
	if es != nil {
		for k, v := range es.Map() {
			stats["extract_"+k] = v
		}
	}
	if err != nil {
		return stats, err
	}

	if !opts.SkipScore {
		results, err := steps.Score.Run(ctx, nil)
		if err != nil {
			return stats, err
		}
		stats["scored"] = len(results)
	}

	log.Info("pipeline: complete", zap.Any("stats", stats))
	return stats, nil
}

// pipelineJob returns the full pipeline as configured, for run and the
// scheduler.
func pipelineJob(pe *pipelineEnv, opts pipelineOptions, freq model.Frequency) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return recordRun(ctx, pe.Store, model.RunKindPipeline, func(ctx context.Context) (map[string]any, error) {
			return runPipeline(ctx, pe, pipelineSteps{
				Catalog: pe.synchronizer(),
				Extract: pe.orchestrator(freq),
				Score:   pe.Scorer,
			}, opts)
		})
	}
}

var (
	runUniverse    string
	runCountries   []string
	runFrequency   string
	runSkipCatalog bool
	runSkipScore   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run catalog sync, extraction, loading and scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		freq, err := model.ParseFrequency(firstNonEmpty(runFrequency, cfg.ETL.Frequency))
		if err != nil {
			return err
		}
		mode := "pipeline"
		if runSkipCatalog {
			mode = "extract"
		}

		env, err := initEnv(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipelineOptions{
			UniverseFile: firstNonEmpty(runUniverse, cfg.ETL.UniverseFile),
			Countries:    runCountries,
			SkipCatalog:  runSkipCatalog,
			SkipScore:    runSkipScore,
		}
		return pipelineJob(env, opts, freq)(ctx)
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	runCmd.Flags().StringVar(&runUniverse, "universe", "", "YAML file mapping country codes to tickers (default: stored catalog)")
	runCmd.Flags().StringSliceVar(&runCountries, "countries", nil, "restrict the universe to these country codes")
	runCmd.Flags().StringVar(&runFrequency, "frequency", "", "statement frequency: annual or quarterly (default from config)")
	runCmd.Flags().BoolVar(&runSkipCatalog, "skip-catalog", false, "reuse the stored catalog instead of syncing it")
	runCmd.Flags().BoolVar(&runSkipScore, "skip-score", false, "load statements without rescoring")
	rootCmd.AddCommand(runCmd)
}
