package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/catalog"
	"github.com/sells-group/fscore-cli/internal/extract"
	"github.com/sells-group/fscore-cli/internal/loader"
	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/quarantine"
	"github.com/sells-group/fscore-cli/internal/scorer"
	"github.com/sells-group/fscore-cli/internal/store"
	"github.com/sells-group/fscore-cli/pkg/xtb"
	"github.com/sells-group/fscore-cli/pkg/yahoo"
)

// pipelineEnv holds the store and the components built on it. Providers
// are constructed from cfg on demand.
type pipelineEnv struct {
	Store  store.Store
	Loader *loader.Loader
	Ledger *quarantine.Ledger
	Scorer *scorer.Engine
}

// Close releases the store.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initEnv opens the store for mode and builds the components.
func initEnv(ctx context.Context, mode string) (*pipelineEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}
	return newEnv(st), nil
}

func newEnv(st store.Store) *pipelineEnv {
	return &pipelineEnv{
		Store:  st,
		Loader: loader.New(st),
		Ledger: quarantine.New(st),
		Scorer: scorer.New(st),
	}
}

func (pe *pipelineEnv) synchronizer() *catalog.Synchronizer {
	client := xtb.NewClient(
		xtb.WithURL(cfg.XTB.URL),
		xtb.WithTimeout(time.Duration(cfg.XTB.TimeoutSecs)*time.Second),
	)
	return catalog.NewSynchronizer(client, pe.Loader, catalog.Options{
		UserID:     cfg.XTB.UserID,
		Password:   cfg.XTB.Password,
		Category:   cfg.XTB.Category,
		IncludeCFD: cfg.XTB.IncludeCFD,
	})
}

func (pe *pipelineEnv) orchestrator(freq model.Frequency) *extract.Orchestrator {
	opts := []yahoo.Option{
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Yahoo.TimeoutSecs) * time.Second}),
		yahoo.WithRateLimit(cfg.Yahoo.RequestsPerSecond),
	}
	if cfg.Yahoo.UserAgent != "" {
		opts = append(opts, yahoo.WithUserAgent(cfg.Yahoo.UserAgent))
	}
	source := extract.NewYahooSource(yahoo.NewClient(opts...))

	return extract.New(source, pe.Ledger, pe.Loader, extract.Options{
		ChunkSize: cfg.ETL.ChunkSize,
		Delay:     cfg.ETL.ChunkDelay,
		Frequency: freq,
		Suffixes:  cfg.ETL.ExchangeSuffixes,
	})
}

// universe resolves the extraction universe: the YAML file when one is
// given, otherwise the stored catalog, restricted to countries.
func (pe *pipelineEnv) universe(ctx context.Context, file string, countries []string) (model.Universe, error) {
	var (
		u   model.Universe
		err error
	)
	if file != "" {
		u, err = extract.LoadUniverseFile(file)
	} else {
		u, err = extract.UniverseFromStore(ctx, pe.Store)
	}
	if err != nil {
		return nil, err
	}
	u = u.Restrict(countries)
	if u.Size() == 0 {
		return nil, eris.New("universe is empty: run `fscore catalog sync` or pass --universe")
	}
	return u, nil
}

// recordRun wraps fn in a run log row. The row is marked failed when fn
// returns an error; a failure to write the log is only logged.
func recordRun(ctx context.Context, st store.Store, kind model.RunKind, fn func(ctx context.Context) (map[string]any, error)) error {
	log := zap.L().With(zap.String("run_kind", string(kind)))

	run, err := st.StartRun(ctx, kind)
	if err != nil {
		return eris.Wrapf(err, "start %s run", kind)
	}
	log = log.With(zap.String("run_id", run.ID))

	stats, fnErr := fn(ctx)
	if fnErr != nil {
		// The run context may already be canceled.
		if err := st.FailRun(context.WithoutCancel(ctx), run.ID, fnErr.Error()); err != nil {
			log.Error("record failed run", zap.Error(err))
		}
		return fnErr
	}
	if err := st.CompleteRun(ctx, run.ID, stats); err != nil {
		log.Error("record completed run", zap.Error(err))
	}
	return nil
}
