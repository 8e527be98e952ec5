// Package extract drives statement extraction for a symbol universe:
// it skips loaded and quarantined symbols, requests the rest in
// fixed-size chunks, normalizes each chunk and loads it atomically.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/transform"
)

// Provider pacing defaults.
const (
	DefaultChunkSize = 5
	DefaultDelay     = 7 * time.Second
)

// Ledger is the quarantine ledger as seen by the orchestrator.
type Ledger interface {
	Refresh(ctx context.Context) error
	IsQuarantined(sym model.Symbol) bool
	Len() int
	Quarantine(ctx context.Context, sym model.Symbol, suffix, reason string) (bool, error)
}

// Sink persists normalized frames and reports what is already loaded.
type Sink interface {
	LoadedSymbols(ctx context.Context) (map[model.Symbol]bool, error)
	LoadStatements(ctx context.Context, frames map[statement.Kind]model.Frame) (int64, error)
}

// Options configures an Orchestrator.
type Options struct {
	ChunkSize int
	// Delay is waited before each provider request that follows a loaded
	// chunk.
	Delay     time.Duration
	Frequency model.Frequency
	// Suffixes maps a country code to its provider exchange suffix. An
	// empty suffix means the bare ticker; an unmapped country uses the
	// country code itself.
	Suffixes map[string]string
}

// Stats summarizes one extraction run.
type Stats struct {
	Requested   int   `json:"requested"`
	Existing    int   `json:"existing"`
	Quarantined int   `json:"quarantined"`
	Fetched     int   `json:"fetched"`
	Failed      int   `json:"failed"`
	Empty       int   `json:"empty"`
	Loaded      int   `json:"loaded"`
	Chunks      int   `json:"chunks"`
	Skipped     int   `json:"skipped_chunks"`
	Rows        int64 `json:"rows"`
}

// Map returns the stats as a run log payload.
func (s *Stats) Map() map[string]any {
	return map[string]any{
		"requested":      s.Requested,
		"existing":       s.Existing,
		"quarantined":    s.Quarantined,
		"fetched":        s.Fetched,
		"failed":         s.Failed,
		"empty":          s.Empty,
		"loaded":         s.Loaded,
		"chunks":         s.Chunks,
		"skipped_chunks": s.Skipped,
		"rows":           s.Rows,
	}
}

// Orchestrator runs extraction over a universe.
type Orchestrator struct {
	source Source
	ledger Ledger
	sink   Sink
	opts   Options
	log    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. A zero ChunkSize or Frequency takes the
// default; a zero Delay disables the wait between chunks.
func New(source Source, ledger Ledger, sink Sink, opts Options) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Frequency == "" {
		opts.Frequency = model.FrequencyAnnual
	}
	return &Orchestrator{
		source: source,
		ledger: ledger,
		sink:   sink,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "extract")),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// ProviderSymbol returns the symbol requested from the provider for ticker
// listed in country, and the suffix it carries.
func (o *Orchestrator) ProviderSymbol(ticker, country string) (string, string) {
	suffix, ok := o.opts.Suffixes[country]
	if !ok {
		suffix = strings.ToUpper(country)
	}
	if suffix == "" {
		return ticker, ""
	}
	return ticker + "." + suffix, suffix
}

// Pending returns, per country, the tickers of u that are neither loaded
// nor quarantined, without duplicates and in universe order.
func Pending(u model.Universe, loaded map[model.Symbol]bool, quarantined func(model.Symbol) bool) (model.Universe, int, int) {
	out := make(model.Universe, len(u))
	var existing, held int
	for _, country := range u.Countries() {
		seen := make(map[string]bool, len(u[country]))
		for _, ticker := range u[country] {
			if seen[ticker] {
				continue
			}
			seen[ticker] = true
			sym := model.Symbol{Ticker: ticker, Country: country}
			switch {
			case loaded[sym]:
				existing++
			case quarantined(sym):
				held++
			default:
				out[country] = append(out[country], ticker)
			}
		}
	}
	return out, existing, held
}

// Chunk partitions tickers into consecutive groups of at most size. The
// last group may be shorter.
func Chunk(tickers []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]string
	for start := 0; start < len(tickers); start += size {
		end := min(start+size, len(tickers))
		out = append(out, tickers[start:end])
	}
	return out
}

// Run extracts every pending symbol of u. Per-symbol failures are
// quarantined and the run continues; connection and storage failures stop
// it and are returned together with the stats gathered so far.
func (o *Orchestrator) Run(ctx context.Context, u model.Universe) (*Stats, error) {
	stats := &Stats{Requested: u.Size()}

	if err := o.ledger.Refresh(ctx); err != nil {
		return stats, eris.Wrap(err, "extract: load quarantine")
	}
	loaded, err := o.sink.LoadedSymbols(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "extract: load existing symbols")
	}

	pending, existing, held := Pending(u, loaded, o.ledger.IsQuarantined)
	stats.Existing = existing
	stats.Quarantined = held
	o.log.Info("extract: starting",
		zap.Int("requested", stats.Requested),
		zap.Int("existing", existing),
		zap.Int("quarantined", held),
		zap.Int("quarantine_records", o.ledger.Len()),
		zap.Int("pending", pending.Size()),
		zap.String("frequency", string(o.opts.Frequency)),
	)

	wait := false
	for _, country := range pending.Countries() {
		for _, chunk := range Chunk(pending[country], o.opts.ChunkSize) {
			if wait {
				if err := o.sleep(ctx, o.opts.Delay); err != nil {
					return stats, eris.Wrap(err, "extract: interrupted")
				}
			}
			stats.Chunks++
			done, err := o.runChunk(ctx, country, chunk, stats)
			if err != nil {
				return stats, err
			}
			wait = done
		}
	}

	o.log.Info("extract: complete",
		zap.Int("loaded", stats.Loaded),
		zap.Int("failed", stats.Failed),
		zap.Int("empty", stats.Empty),
		zap.Int64("rows", stats.Rows),
	)
	return stats, nil
}

// runChunk fetches, normalizes and loads one chunk. It reports whether
// anything was loaded.
func (o *Orchestrator) runChunk(ctx context.Context, country string, tickers []string, stats *Stats) (bool, error) {
	log := o.log.With(zap.String("country", country), zap.Strings("tickers", tickers))
	batch := statement.NewBatch()
	suffixes := make(map[model.Symbol]string, len(tickers))

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return false, eris.Wrap(err, "extract: interrupted")
		}
		sym := model.Symbol{Ticker: ticker, Country: country}
		providerSymbol, suffix := o.ProviderSymbol(ticker, country)
		suffixes[sym] = suffix

		set, err := o.source.Fetch(ctx, providerSymbol, o.opts.Frequency)
		if err != nil {
			if resilience.IsConnectionFailure(err) {
				return false, eris.Wrapf(err, "extract: fetch %s", providerSymbol)
			}
			stats.Failed++
			serr := &resilience.SymbolError{Symbol: providerSymbol, Err: err}
			if _, qerr := o.ledger.Quarantine(ctx, sym, suffix, serr.Reason()); qerr != nil {
				return false, qerr
			}
			continue
		}
		stats.Fetched++
		batch.Add(sym.Key(), set)
	}

	if !batch.HasData() {
		stats.Skipped++
		log.Info("extract: chunk carried no data")
		return false, nil
	}

	res, err := transform.Normalize(batch, o.now())
	if res != nil {
		for _, e := range res.Empty {
			stats.Empty++
			if _, qerr := o.ledger.Quarantine(ctx, e.Symbol, suffixes[e.Symbol], e.Reason()); qerr != nil {
				return false, qerr
			}
		}
	}
	if err != nil {
		if eris.Is(err, resilience.ErrEmptyStatement) {
			stats.Skipped++
			log.Info("extract: chunk had no usable statements")
			return false, nil
		}
		return false, eris.Wrap(err, "extract: normalize")
	}

	log.Debug("extract: chunk normalized", zap.Int("symbols", len(res.Symbols)), zap.Int("rows", res.Rows()))
	rows, err := o.sink.LoadStatements(ctx, res.Frames)
	if err != nil {
		return false, eris.Wrap(err, "extract: load chunk")
	}
	stats.Rows += rows
	stats.Loaded += len(res.Symbols)
	log.Info("extract: chunk loaded", zap.Int("symbols", len(res.Symbols)), zap.Int64("rows", rows))
	return true, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
