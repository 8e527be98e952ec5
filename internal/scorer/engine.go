package scorer

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/loader"
	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
)

// Engine scores symbols from stored statements and persists the ranked
// result view.
type Engine struct {
	store  store.Store
	loader *loader.Loader
	log    *zap.Logger
}

// New creates an engine over st.
func New(st store.Store) *Engine {
	return &Engine{
		store:  st,
		loader: loader.New(st),
		log:    zap.L().With(zap.String("component", "scorer")),
	}
}

type dated struct {
	sym  model.Symbol
	date time.Time
}

// History returns sym's joined statement periods, newest first. Only dates
// present in all three statement tables are kept.
func (e *Engine) History(ctx context.Context, sym model.Symbol) ([]Period, error) {
	frames, err := e.readTables(ctx, symbolFilter([]model.Symbol{sym}), statement.Balance, statement.Income, statement.CashFlow)
	if err != nil {
		return nil, err
	}
	return joinHistory(frames[statement.Balance], frames[statement.Income], frames[statement.CashFlow])[sym], nil
}

// Score evaluates symbols and returns their results in rank order. An empty
// list scores every symbol loaded in all snapshot tables.
func (e *Engine) Score(ctx context.Context, symbols []model.Symbol) ([]model.ScoreResult, error) {
	if len(symbols) == 0 {
		loaded, err := e.loader.LoadedSymbols(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "scorer: list loaded symbols")
		}
		for sym := range loaded {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	frames, err := e.readTables(ctx, symbolFilter(symbols), statement.Kinds...)
	if err != nil {
		return nil, err
	}
	catalog, err := e.store.Select(ctx, statement.TableCatalog, symbolFilter(symbols))
	if err != nil {
		return nil, eris.Wrap(err, "scorer: read catalog")
	}

	history := joinHistory(frames[statement.Balance], frames[statement.Income], frames[statement.CashFlow])
	stats := latest(frames[statement.Statistics])
	profile := latest(frames[statement.Profile])
	names := make(map[model.Symbol]string, catalog.Len())
	for i := range catalog.Rows {
		names[rowSymbol(catalog, i)] = model.Text(catalog.Value(i, "name"))
	}

	seen := make(map[model.Symbol]bool, len(symbols))
	results := make([]model.ScoreResult, 0, len(symbols))
	for _, sym := range symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true

		h := history[sym]
		score, signals := Evaluate(h)
		e.log.Debug("scored",
			zap.String("symbol", sym.Key()),
			zap.Stringer("score", score),
			zap.Int("periods", len(h)),
			zap.Bools("signals", signals[:]),
		)
		results = append(results, assemble(sym, names[sym], score, h, stats[sym], profile[sym]))
	}

	Rank(results)
	return results, nil
}

// Run scores symbols and replaces the persisted score view with the result.
func (e *Engine) Run(ctx context.Context, symbols []model.Symbol) ([]model.ScoreResult, error) {
	results, err := e.Score(ctx, symbols)
	if err != nil {
		return nil, err
	}
	n, err := e.loader.ReplaceScores(ctx, results)
	if err != nil {
		return nil, err
	}

	noData := 0
	for _, r := range results {
		if !r.Score.Valid {
			noData++
		}
	}
	e.log.Info("scorer: results saved", zap.Int64("rows", n), zap.Int("no_data", noData))
	return results, nil
}

func (e *Engine) readTables(ctx context.Context, filter store.Filter, kinds ...statement.Kind) (map[statement.Kind]model.Frame, error) {
	out := make(map[statement.Kind]model.Frame, len(kinds))
	for _, k := range kinds {
		table := k.Schema().Table
		frame, err := e.store.Select(ctx, table, filter)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: read %s", table)
		}
		out[k] = frame
	}
	return out, nil
}

// symbolFilter narrows reads to a single symbol. Larger sets read whole
// tables and are matched in memory.
func symbolFilter(symbols []model.Symbol) store.Filter {
	if len(symbols) != 1 {
		return nil
	}
	return store.Filter{
		statement.ColTicker:  symbols[0].Ticker,
		statement.ColCountry: symbols[0].Country,
	}
}

func rowSymbol(f model.Frame, i int) model.Symbol {
	return model.Symbol{
		Ticker:  model.Text(f.Value(i, statement.ColTicker)),
		Country: model.Text(f.Value(i, statement.ColCountry)),
	}
}

func rowKey(f model.Frame, i int) (dated, bool) {
	d, ok := model.Date(f.Value(i, statement.ColAsofDate))
	return dated{sym: rowSymbol(f, i), date: d}, ok
}

// joinHistory inner-joins the statement frames on (symbol, asof_date) and
// returns each symbol's periods newest first.
func joinHistory(balance, income, cash model.Frame) map[model.Symbol][]Period {
	incomeRows := indexRows(income)
	cashRows := indexRows(cash)

	out := make(map[model.Symbol][]Period)
	seen := make(map[dated]bool, balance.Len())
	for i := range balance.Rows {
		k, ok := rowKey(balance, i)
		if !ok || seen[k] {
			continue
		}
		ii, inIncome := incomeRows[k]
		ci, inCash := cashRows[k]
		if !inIncome || !inCash {
			continue
		}
		seen[k] = true
		out[k.sym] = append(out[k.sym], Period{
			Date:               k.date,
			TotalAssets:        model.FloatPtr(balance.Value(i, "total_assets")),
			LongTermDebt:       model.FloatPtr(balance.Value(i, "long_term_debt")),
			CurrentAssets:      model.FloatPtr(balance.Value(i, "current_assets")),
			CurrentLiabilities: model.FloatPtr(balance.Value(i, "current_liabilities")),
			CommonStock:        model.FloatPtr(balance.Value(i, "common_stock")),
			NetIncome:          model.FloatPtr(income.Value(ii, "net_income")),
			TotalRevenue:       model.FloatPtr(income.Value(ii, "total_revenue")),
			GrossProfit:        model.FloatPtr(income.Value(ii, "gross_profit")),
			OperatingCashFlow:  model.FloatPtr(cash.Value(ci, "operating_cash_flow")),
		})
	}

	for sym, periods := range out {
		sort.Slice(periods, func(i, j int) bool { return periods[i].Date.After(periods[j].Date) })
		out[sym] = periods
	}
	return out
}

// indexRows maps (symbol, date) to the first row carrying it.
func indexRows(f model.Frame) map[dated]int {
	idx := make(map[dated]int, f.Len())
	for i := range f.Rows {
		k, ok := rowKey(f, i)
		if !ok {
			continue
		}
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	return idx
}

// latest returns each symbol's most recent snapshot row.
func latest(f model.Frame) map[model.Symbol]map[string]any {
	type pick struct {
		row  int
		date time.Time
	}
	best := make(map[model.Symbol]pick)
	for i := range f.Rows {
		k, ok := rowKey(f, i)
		if !ok {
			continue
		}
		if p, found := best[k.sym]; !found || k.date.After(p.date) {
			best[k.sym] = pick{row: i, date: k.date}
		}
	}
	out := make(map[model.Symbol]map[string]any, len(best))
	for sym, p := range best {
		out[sym] = f.Record(p.row)
	}
	return out
}

func assemble(sym model.Symbol, name string, score model.Score, h []Period, stats, profile map[string]any) model.ScoreResult {
	r := model.ScoreResult{
		Ticker:               sym.Ticker,
		Country:              sym.Country,
		Name:                 name,
		Score:                score,
		TrailingPE:           model.FloatPtr(stats["trailing_pe"]),
		Currency:             model.Text(stats["currency"]),
		DividendRate:         model.FloatPtr(stats["dividend_rate"]),
		Volume:               model.FloatPtr(stats["volume"]),
		MarketCap:            model.IntPtr(stats["market_cap"]),
		TwoHundredDayAverage: model.FloatPtr(stats["two_hundred_day_average"]),
		Industry:             model.Text(profile["industry"]),
		Sector:               model.Text(profile["sector"]),
		Website:              model.Text(profile["website"]),
		LongBusinessSummary:  model.Text(profile["long_business_summary"]),
	}
	if len(h) > 0 {
		d := h[0].Date
		r.LastAsofDate = &d
	}
	return r
}
