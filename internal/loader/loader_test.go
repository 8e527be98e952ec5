package loader

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

func newTestLoader(t *testing.T) (*Loader, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

var fy23 = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

// framesFor builds one row per kind for each symbol.
func framesFor(syms ...model.Symbol) map[statement.Kind]model.Frame {
	frames := make(map[statement.Kind]model.Frame)
	for _, k := range statement.Kinds {
		schema := k.Schema()
		frame := schema.Frame()
		for _, sym := range syms {
			frame.Rows = append(frame.Rows, schema.Project(statement.Record{
				statement.ColAsofDate: fy23,
				statement.ColTicker:   sym.Ticker,
				statement.ColCountry:  sym.Country,
			}, statement.Record{"totalAssets": 100.0, "currency": "EUR"}))
		}
		frames[k] = frame
	}
	return frames
}

func TestLoadStatements_AndLoadedSymbols(t *testing.T) {
	l, st := newTestLoader(t)
	ctx := context.Background()
	sap := model.Symbol{Ticker: "SAP", Country: "DE"}
	vod := model.Symbol{Ticker: "VOD", Country: "UK"}

	n, err := l.LoadStatements(ctx, framesFor(sap, vod))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	// A symbol present in only some tables is not loaded.
	partial := statement.BalanceSchema.Frame()
	partial.Rows = append(partial.Rows, statement.BalanceSchema.Project(statement.Record{
		statement.ColAsofDate: fy23, statement.ColTicker: "BMW", statement.ColCountry: "DE",
	}, nil))
	_, err = st.Append(ctx, statement.TableBalance, partial)
	require.NoError(t, err)

	loaded, err := l.LoadedSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.Symbol]bool{sap: true, vod: true}, loaded)
}

func TestLoadStatements_DuplicateRollsBackAllTables(t *testing.T) {
	l, st := newTestLoader(t)
	ctx := context.Background()
	sap := model.Symbol{Ticker: "SAP", Country: "DE"}

	_, err := l.LoadStatements(ctx, framesFor(sap))
	require.NoError(t, err)

	frames := framesFor(model.Symbol{Ticker: "BMW", Country: "DE"})
	dup := framesFor(sap)
	frames[statement.Profile] = dup[statement.Profile]
	_, err = l.LoadStatements(ctx, frames)
	require.Error(t, err)

	balance, err := st.Select(ctx, statement.TableBalance, store.Filter{"ticker": "BMW"})
	require.NoError(t, err)
	assert.Zero(t, balance.Len())
}

func TestLoadStatements_RejectsWrongColumns(t *testing.T) {
	l, _ := newTestLoader(t)

	frames := map[statement.Kind]model.Frame{
		statement.Balance: {Columns: []string{"ticker"}, Rows: [][]any{{"SAP"}}},
	}
	_, err := l.LoadStatements(context.Background(), frames)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema projection mismatch")
}

func TestLoadedSymbols_Empty(t *testing.T) {
	l, _ := newTestLoader(t)

	loaded, err := l.LoadedSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestReplaceCatalog(t *testing.T) {
	l, st := newTestLoader(t)
	ctx := context.Background()

	_, err := l.ReplaceCatalog(ctx, []model.CatalogEntry{
		{Ticker: "SAP", Country: "DE", Name: "SAP SE"},
		{Ticker: "BMW", Country: "DE", Name: "BMW AG"},
	})
	require.NoError(t, err)

	n, err := l.ReplaceCatalog(ctx, []model.CatalogEntry{{Ticker: "VOD", Country: "UK", Name: "Vodafone"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	frame, err := st.Select(ctx, statement.TableCatalog, nil)
	require.NoError(t, err)
	require.Equal(t, 1, frame.Len())
	assert.Equal(t, "Vodafone", frame.Value(0, "name"))
}

func TestReplaceScores_RoundTrip(t *testing.T) {
	l, _ := newTestLoader(t)
	ctx := context.Background()
	pe := 12.5
	mcap := int64(5_000_000)
	last := fy23

	results := []model.ScoreResult{
		{Ticker: "SAP", Country: "DE", Name: "SAP SE", Score: model.NewScore(7), TrailingPE: &pe,
			LastAsofDate: &last, MarketCap: &mcap, Sector: "Technology"},
		{Ticker: "VOD", Country: "UK", Name: "Vodafone", Score: model.NoData()},
	}
	_, err := l.ReplaceScores(ctx, results)
	require.NoError(t, err)
	// Second run replaces rather than accumulates.
	_, err = l.ReplaceScores(ctx, results)
	require.NoError(t, err)

	got, err := l.ReadScores(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byTicker := map[string]model.ScoreResult{}
	for _, r := range got {
		byTicker[r.Ticker] = r
	}
	sap := byTicker["SAP"]
	assert.Equal(t, model.NewScore(7), sap.Score)
	require.NotNil(t, sap.TrailingPE)
	assert.Equal(t, 12.5, *sap.TrailingPE)
	require.NotNil(t, sap.MarketCap)
	assert.Equal(t, mcap, *sap.MarketCap)
	require.NotNil(t, sap.LastAsofDate)
	assert.True(t, fy23.Equal(*sap.LastAsofDate))
	assert.Equal(t, "Technology", sap.Sector)

	vod := byTicker["VOD"]
	assert.False(t, vod.Score.Valid)
	assert.Nil(t, vod.TrailingPE)
	assert.Nil(t, vod.LastAsofDate)
}
