// Package loader writes normalized frames to storage: append-only for
// statement snapshots, full replace for the catalog and score tables.
package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
)

// Loader persists pipeline output.
type Loader struct {
	store store.Store
	log   *zap.Logger
}

// New creates a Loader over st.
func New(st store.Store) *Loader {
	return &Loader{
		store: st,
		log:   zap.L().With(zap.String("component", "loader")),
	}
}

// LoadStatements appends one chunk's frames, all kinds in one transaction,
// so a symbol's five snapshots land together or not at all.
func (l *Loader) LoadStatements(ctx context.Context, frames map[statement.Kind]model.Frame) (int64, error) {
	batch := make([]store.TableFrame, 0, len(statement.Kinds))
	for _, k := range statement.Kinds {
		frame, ok := frames[k]
		if !ok {
			continue
		}
		if err := k.Schema().Check(frame); err != nil {
			return 0, eris.Wrap(err, "loader: statements")
		}
		batch = append(batch, store.TableFrame{Table: k.Schema().Table, Frame: frame})
	}

	n, err := l.store.AppendAll(ctx, batch)
	if err != nil {
		return 0, eris.Wrap(err, "loader: append statements")
	}
	l.log.Debug("statements appended", zap.Int64("rows", n))
	return n, nil
}

// ReplaceCatalog replaces the catalog table with entries.
func (l *Loader) ReplaceCatalog(ctx context.Context, entries []model.CatalogEntry) (int64, error) {
	frame := statement.CatalogSchema.Frame()
	for _, e := range entries {
		frame.Rows = append(frame.Rows, statement.CatalogSchema.Project(statement.Record{
			statement.ColTicker:  e.Ticker,
			statement.ColCountry: e.Country,
			"name":               e.Name,
		}, nil))
	}
	n, err := l.store.Replace(ctx, statement.TableCatalog, frame)
	if err != nil {
		return 0, eris.Wrap(err, "loader: replace catalog")
	}
	return n, nil
}

// ReplaceScores deletes every prior score row and inserts results.
func (l *Loader) ReplaceScores(ctx context.Context, results []model.ScoreResult) (int64, error) {
	frame := statement.ScoreSchema.Frame()
	for _, r := range results {
		frame.Rows = append(frame.Rows, scoreRow(r))
	}
	n, err := l.store.Replace(ctx, statement.TableScores, frame)
	if err != nil {
		return 0, eris.Wrap(err, "loader: replace scores")
	}
	return n, nil
}

// ReadScores loads persisted score rows matching filter, in storage order.
func (l *Loader) ReadScores(ctx context.Context, filter store.Filter) ([]model.ScoreResult, error) {
	frame, err := l.store.Select(ctx, statement.TableScores, filter)
	if err != nil {
		return nil, eris.Wrap(err, "loader: read scores")
	}
	out := make([]model.ScoreResult, 0, frame.Len())
	for i := range frame.Rows {
		out = append(out, scoreFromRecord(frame.Record(i)))
	}
	return out, nil
}

// LoadedSymbols returns the symbols present in all five snapshot tables.
func (l *Loader) LoadedSymbols(ctx context.Context) (map[model.Symbol]bool, error) {
	var loaded map[model.Symbol]bool
	for _, k := range statement.Kinds {
		table := k.Schema().Table
		frame, err := l.store.Select(ctx, table, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: loaded symbols from %s", table)
		}
		present := make(map[model.Symbol]bool)
		for i := range frame.Rows {
			sym := model.Symbol{
				Ticker:  model.Text(frame.Value(i, statement.ColTicker)),
				Country: model.Text(frame.Value(i, statement.ColCountry)),
			}
			if loaded == nil || loaded[sym] {
				present[sym] = true
			}
		}
		loaded = present
		if len(loaded) == 0 {
			break
		}
	}
	return loaded, nil
}

func scoreRow(r model.ScoreResult) []any {
	var score any
	if r.Score.Valid {
		score = r.Score.Value
	}
	var lastAsof any
	if r.LastAsofDate != nil {
		lastAsof = *r.LastAsofDate
	}
	return statement.ScoreSchema.Project(statement.Record{
		statement.ColTicker:       r.Ticker,
		statement.ColCountry:      r.Country,
		"name":                    r.Name,
		"piotroski_f_score":       score,
		"trailing_pe":             deref(r.TrailingPE),
		"last_asof_date":          lastAsof,
		"industry":                r.Industry,
		"sector":                  r.Sector,
		"currency":                r.Currency,
		"dividend_rate":           deref(r.DividendRate),
		"volume":                  deref(r.Volume),
		"market_cap":              deref(r.MarketCap),
		"two_hundred_day_average": deref(r.TwoHundredDayAverage),
		"website":                 r.Website,
		"long_business_summary":   r.LongBusinessSummary,
	}, nil)
}

func scoreFromRecord(rec map[string]any) model.ScoreResult {
	r := model.ScoreResult{
		Ticker:               model.Text(rec[statement.ColTicker]),
		Country:              model.Text(rec[statement.ColCountry]),
		Name:                 model.Text(rec["name"]),
		Score:                model.NoData(),
		TrailingPE:           model.FloatPtr(rec["trailing_pe"]),
		Industry:             model.Text(rec["industry"]),
		Sector:               model.Text(rec["sector"]),
		Currency:             model.Text(rec["currency"]),
		DividendRate:         model.FloatPtr(rec["dividend_rate"]),
		Volume:               model.FloatPtr(rec["volume"]),
		MarketCap:            model.IntPtr(rec["market_cap"]),
		TwoHundredDayAverage: model.FloatPtr(rec["two_hundred_day_average"]),
		Website:              model.Text(rec["website"]),
		LongBusinessSummary:  model.Text(rec["long_business_summary"]),
	}
	if v, ok := model.Int(rec["piotroski_f_score"]); ok {
		r.Score = model.NewScore(int(v))
	}
	if d, ok := model.Date(rec["last_asof_date"]); ok {
		r.LastAsofDate = &d
	}
	return r
}

func deref[T float64 | int64](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
