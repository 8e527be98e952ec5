package scorer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	sap = model.Symbol{Ticker: "SAP", Country: "DE"}
	bmw = model.Symbol{Ticker: "BMW", Country: "DE"}
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

func appendRow(t *testing.T, st store.Store, k statement.Kind, sym model.Symbol, date time.Time, raw statement.Record) {
	t.Helper()
	schema := k.Schema()
	frame := schema.Frame()
	frame.Rows = append(frame.Rows, schema.Project(statement.Record{
		statement.ColAsofDate: date,
		statement.ColTicker:   sym.Ticker,
		statement.ColCountry:  sym.Country,
	}, raw))
	_, err := st.Append(context.Background(), schema.Table, frame)
	require.NoError(t, err)
}

// seedHistory stores each fixture period in all three statement tables.
func seedHistory(t *testing.T, st store.Store, sym model.Symbol, periods []Period) {
	t.Helper()
	for _, p := range periods {
		appendRow(t, st, statement.Balance, sym, p.Date, statement.Record{
			"totalAssets":        ptrValue(p.TotalAssets),
			"longTermDebt":       ptrValue(p.LongTermDebt),
			"currentAssets":      ptrValue(p.CurrentAssets),
			"currentLiabilities": ptrValue(p.CurrentLiabilities),
			"commonStock":        ptrValue(p.CommonStock),
		})
		appendRow(t, st, statement.Income, sym, p.Date, statement.Record{
			"netIncome":    ptrValue(p.NetIncome),
			"totalRevenue": ptrValue(p.TotalRevenue),
			"grossProfit":  ptrValue(p.GrossProfit),
		})
		appendRow(t, st, statement.CashFlow, sym, p.Date, statement.Record{
			"operatingCashFlow": ptrValue(p.OperatingCashFlow),
		})
	}
}

func seedSnapshot(t *testing.T, st store.Store, sym model.Symbol, date time.Time, pe float64) {
	t.Helper()
	appendRow(t, st, statement.Statistics, sym, date, statement.Record{"trailingPE": pe, "currency": "EUR"})
	appendRow(t, st, statement.Profile, sym, date, statement.Record{"sector": "Technology"})
}

func ptrValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func seedCatalog(t *testing.T, st store.Store) {
	t.Helper()
	frame := statement.CatalogSchema.Frame()
	for _, e := range []model.CatalogEntry{
		{Ticker: "SAP", Country: "DE", Name: "SAP SE"},
		{Ticker: "BMW", Country: "DE", Name: "Bayerische Motoren Werke"},
	} {
		frame.Rows = append(frame.Rows, statement.CatalogSchema.Project(statement.Record{
			statement.ColTicker: e.Ticker, statement.ColCountry: e.Country, "name": e.Name,
		}, nil))
	}
	_, err := st.Append(context.Background(), statement.TableCatalog, frame)
	require.NoError(t, err)
}

func TestHistory_InnerJoinNewestFirst(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	h := fixtureHistory()
	seedHistory(t, st, sap, []Period{h[2], h[0], h[1]})

	// A balance-only date is not part of the joined history.
	appendRow(t, st, statement.Balance, sap, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		statement.Record{"totalAssets": 120.0})

	got, err := e.History(ctx, sap)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, h[0].Date, got[0].Date)
	assert.Equal(t, h[1].Date, got[1].Date)
	assert.Equal(t, h[2].Date, got[2].Date)
	require.NotNil(t, got[0].TotalAssets)
	assert.InDelta(t, 100, *got[0].TotalAssets, 1e-9)
	assert.Nil(t, got[2].NetIncome)
}

func TestScore_AssemblesRankedView(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	seedCatalog(t, st)

	seedHistory(t, st, sap, fixtureHistory())
	seedSnapshot(t, st, sap, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 40)
	seedSnapshot(t, st, sap, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 21.5)

	seedHistory(t, st, bmw, fixtureHistory()[:2])
	seedSnapshot(t, st, bmw, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 6)

	results, err := e.Score(ctx, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	top := results[0]
	assert.Equal(t, "SAP", top.Ticker)
	assert.Equal(t, "SAP SE", top.Name)
	assert.Equal(t, model.NewScore(7), top.Score)
	require.NotNil(t, top.TrailingPE)
	assert.InDelta(t, 21.5, *top.TrailingPE, 1e-9)
	require.NotNil(t, top.LastAsofDate)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), *top.LastAsofDate)
	assert.Equal(t, "Technology", top.Sector)
	assert.Equal(t, "EUR", top.Currency)

	last := results[1]
	assert.Equal(t, "BMW", last.Ticker)
	assert.False(t, last.Score.Valid)
	assert.Equal(t, "Bayerische Motoren Werke", last.Name)
}

func TestScore_SingleSymbol(t *testing.T) {
	e, st := newTestEngine(t)
	seedHistory(t, st, sap, fixtureHistory())
	seedHistory(t, st, bmw, fixtureHistory())

	results, err := e.Score(context.Background(), []model.Symbol{bmw})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "BMW", results[0].Ticker)
	assert.Equal(t, model.NewScore(7), results[0].Score)
	assert.Empty(t, results[0].Name)
	assert.Nil(t, results[0].TrailingPE)
}

func TestScore_NothingLoaded(t *testing.T) {
	e, _ := newTestEngine(t)
	results, err := e.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_FullReplace(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	seedHistory(t, st, sap, fixtureHistory())
	seedSnapshot(t, st, sap, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 21.5)
	seedHistory(t, st, bmw, fixtureHistory()[:2])
	seedSnapshot(t, st, bmw, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 6)

	for range 2 {
		_, err := e.Run(ctx, nil)
		require.NoError(t, err)
	}

	rows, err := st.Select(ctx, statement.TableScores, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rows.Len())

	noData, err := st.Select(ctx, statement.TableScores, store.Filter{"piotroski_f_score": nil})
	require.NoError(t, err)
	require.Equal(t, 1, noData.Len())
	assert.Equal(t, "BMW", model.Text(noData.Value(0, statement.ColTicker)))
}
