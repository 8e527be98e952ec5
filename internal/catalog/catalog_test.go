package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
	"github.com/sells-group/fscore-cli/pkg/xtb"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeClient struct {
	loginErr   error
	symbols    []xtb.Symbol
	symbolsErr error
	loggedOut  bool
	closed     bool
}

func (f *fakeClient) Login(context.Context, string, string) error { return f.loginErr }

func (f *fakeClient) GetAllSymbols(context.Context) ([]xtb.Symbol, error) {
	return f.symbols, f.symbolsErr
}

func (f *fakeClient) Logout(context.Context) error {
	f.loggedOut = true
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

type fakeWriter struct {
	entries []model.CatalogEntry
	err     error
}

func (w *fakeWriter) ReplaceCatalog(_ context.Context, entries []model.CatalogEntry) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.entries = entries
	return int64(len(entries)), nil
}

var sample = []xtb.Symbol{
	{Symbol: "SAP.DE_9", Description: "SAP SE (EUR)", CategoryName: "STC"},
	{Symbol: "VOD.UK", Description: "Vodafone  Group (GBX)", CategoryName: "STC"},
	{Symbol: "VOD.UK_4", Description: "Vodafone Group duplicate", CategoryName: "STC"},
	{Symbol: "AAPL.US_9", Description: "Apple Inc CFD", CategoryName: "STC"},
	{Symbol: "EURUSD", Description: "Euro to US Dollar", CategoryName: "FX"},
	{Symbol: "NODOT", Description: "Broken record", CategoryName: "STC"},
	{Symbol: "SPY.US", Description: "SPDR S&P 500 ETF", CategoryName: "ETF"},
}

func TestParse(t *testing.T) {
	entries, skipped, err := Parse(sample, Options{Category: "STC"})
	require.NoError(t, err)

	assert.Equal(t, 1, skipped)
	assert.Equal(t, []model.CatalogEntry{
		{Ticker: "SAP", Country: "DE", Name: "SAP SE"},
		{Ticker: "VOD", Country: "UK", Name: "Vodafone Group"},
	}, entries)
}

func TestParse_IncludeCFD(t *testing.T) {
	entries, _, err := Parse(sample, Options{Category: "STC", IncludeCFD: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "AAPL", entries[2].Ticker)
	assert.Equal(t, "US", entries[2].Country)
}

func TestParse_UnknownCategory(t *testing.T) {
	_, _, err := Parse(sample, Options{Category: "BND"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownCategory))
	assert.Contains(t, err.Error(), "ETF, FX, STC are valid categories")
}

func TestParse_NoCategoryKeepsAll(t *testing.T) {
	entries, _, err := Parse(sample, Options{})
	require.NoError(t, err)
	assert.Len(t, entries, 3) // SAP, VOD, SPY; EURUSD and NODOT have no exchange part
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		code string
		want model.Symbol
		ok   bool
	}{
		{"SAP.DE_9", model.Symbol{Ticker: "SAP", Country: "DE"}, true},
		{"VOD.UK", model.Symbol{Ticker: "VOD", Country: "UK"}, true},
		{"EURUSD", model.Symbol{}, false},
		{".DE", model.Symbol{}, false},
		{"SAP._9", model.Symbol{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := ParseSymbol(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "SAP SE", CleanName("SAP SE (EUR)"))
	assert.Equal(t, "Nestle SA", CleanName(" Nestle (Reg) SA (CHF) "))
	// decomposed e + combining acute composes to a single rune
	assert.Equal(t, "Soci\u00e9t\u00e9 G\u00e9n\u00e9rale", CleanName("Socie\u0301te\u0301 Ge\u0301ne\u0301rale (EUR)"))
}

func TestSync(t *testing.T) {
	client := &fakeClient{symbols: sample}
	writer := &fakeWriter{}
	s := NewSynchronizer(client, writer, Options{Category: "STC"})

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{Received: 7, Written: 2, Skipped: 1}, res)
	assert.Len(t, writer.entries, 2)
	assert.True(t, client.loggedOut)
	assert.True(t, client.closed)
}

func TestSync_LoginFailureIsConnectionFailure(t *testing.T) {
	client := &fakeClient{loginErr: errors.New("xtb: login rejected: BE005")}
	writer := &fakeWriter{}

	_, err := NewSynchronizer(client, writer, Options{}).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsConnectionFailure(err))
	assert.Nil(t, writer.entries)
	assert.True(t, client.closed)
}

func TestSync_SymbolsFailureIsConnectionFailure(t *testing.T) {
	client := &fakeClient{symbolsErr: errors.New("read: broken pipe")}

	_, err := NewSynchronizer(client, &fakeWriter{}, Options{}).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsConnectionFailure(err))
	assert.True(t, client.loggedOut)
}

func TestSync_UnknownCategoryLeavesCatalog(t *testing.T) {
	writer := &fakeWriter{entries: []model.CatalogEntry{{Ticker: "OLD", Country: "DE"}}}

	_, err := NewSynchronizer(&fakeClient{symbols: sample}, writer, Options{Category: "BND"}).Sync(context.Background())
	require.Error(t, err)
	assert.False(t, resilience.IsConnectionFailure(err))
	assert.Equal(t, "OLD", writer.entries[0].Ticker)
}
