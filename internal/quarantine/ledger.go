// Package quarantine is the durable ledger of symbols known to fail
// extraction or transformation. The ledger is consulted before every
// provider request; records are removed only by a human.
package quarantine

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
)

// ErrNotFound is returned by Confirm and Clear when no record matches.
var ErrNotFound = eris.New("quarantine: record not found")

type suffixKey struct {
	ticker string
	suffix string
}

// Ledger serves quarantine checks from an in-memory snapshot of the
// sa_erroneous_symbols table. Every write refreshes the snapshot.
type Ledger struct {
	store store.Store
	log   *zap.Logger

	mu       sync.RWMutex
	bySymbol map[model.Symbol]model.QuarantineRecord
	bySuffix map[suffixKey]bool
}

// New creates a ledger over st. Call Refresh before the first check.
func New(st store.Store) *Ledger {
	return &Ledger{
		store:    st,
		log:      zap.L().With(zap.String("component", "quarantine")),
		bySymbol: make(map[model.Symbol]model.QuarantineRecord),
		bySuffix: make(map[suffixKey]bool),
	}
}

// Refresh reloads the snapshot from storage.
func (l *Ledger) Refresh(ctx context.Context) error {
	records, err := l.load(ctx, nil)
	if err != nil {
		return err
	}

	bySymbol := make(map[model.Symbol]model.QuarantineRecord, len(records))
	bySuffix := make(map[suffixKey]bool, len(records))
	for _, r := range records {
		bySymbol[r.Symbol()] = r
		bySuffix[suffixKey{r.Ticker, r.Suffix}] = true
	}

	l.mu.Lock()
	l.bySymbol = bySymbol
	l.bySuffix = bySuffix
	l.mu.Unlock()
	return nil
}

// IsQuarantined reports whether sym has a ledger record in the snapshot.
func (l *Ledger) IsQuarantined(sym model.Symbol) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.bySymbol[sym]
	return ok
}

// Len returns the number of records in the snapshot.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bySymbol)
}

// Quarantine records sym under the provider suffix used to request it. A
// symbol that is already present is left untouched and added is false. An
// empty suffix is recorded as the country code.
func (l *Ledger) Quarantine(ctx context.Context, sym model.Symbol, suffix, reason string) (added bool, err error) {
	if suffix == "" {
		suffix = sym.Country
	}
	l.mu.RLock()
	_, known := l.bySymbol[sym]
	known = known || l.bySuffix[suffixKey{sym.Ticker, suffix}]
	l.mu.RUnlock()
	if known {
		return false, nil
	}

	row := statement.QuarantineSchema.Project(statement.Record{
		statement.ColTicker:  sym.Ticker,
		"suffix":             suffix,
		statement.ColCountry: sym.Country,
		"reason":             reason,
		"confirmed_manually": false,
	}, nil)
	frame := statement.QuarantineSchema.Frame()
	frame.Rows = append(frame.Rows, row)

	if _, err := l.store.Append(ctx, statement.TableQuarantine, frame); err != nil {
		return false, eris.Wrapf(err, "quarantine: record %s", sym)
	}
	l.log.Warn("symbol quarantined",
		zap.String("symbol", sym.Key()),
		zap.String("suffix", suffix),
		zap.String("reason", reason),
	)

	if err := l.Refresh(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// List reads records straight from storage, sorted by country then ticker.
func (l *Ledger) List(ctx context.Context, unconfirmedOnly bool) ([]model.QuarantineRecord, error) {
	var filter store.Filter
	if unconfirmedOnly {
		filter = store.Filter{"confirmed_manually": false}
	}
	records, err := l.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Country != records[j].Country {
			return records[i].Country < records[j].Country
		}
		return records[i].Ticker < records[j].Ticker
	})
	return records, nil
}

// Confirm marks a record as reviewed by a human. The symbol stays
// quarantined.
func (l *Ledger) Confirm(ctx context.Context, ticker, suffix string) error {
	n, err := l.store.Update(ctx, statement.TableQuarantine,
		map[string]any{"confirmed_manually": true},
		store.Filter{statement.ColTicker: ticker, "suffix": suffix},
	)
	if err != nil {
		return eris.Wrapf(err, "quarantine: confirm %s.%s", ticker, suffix)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "quarantine: confirm %s.%s", ticker, suffix)
	}
	return l.Refresh(ctx)
}

// Clear removes a record, re-enabling extraction of the symbol.
func (l *Ledger) Clear(ctx context.Context, ticker, suffix string) error {
	n, err := l.store.Delete(ctx, statement.TableQuarantine,
		store.Filter{statement.ColTicker: ticker, "suffix": suffix},
	)
	if err != nil {
		return eris.Wrapf(err, "quarantine: clear %s.%s", ticker, suffix)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "quarantine: clear %s.%s", ticker, suffix)
	}
	l.log.Info("quarantine cleared", zap.String("ticker", ticker), zap.String("suffix", suffix))
	return l.Refresh(ctx)
}

func (l *Ledger) load(ctx context.Context, filter store.Filter) ([]model.QuarantineRecord, error) {
	frame, err := l.store.Select(ctx, statement.TableQuarantine, filter)
	if err != nil {
		return nil, eris.Wrap(err, "quarantine: load")
	}
	records := make([]model.QuarantineRecord, 0, frame.Len())
	for i := range frame.Rows {
		records = append(records, model.QuarantineRecord{
			Ticker:            model.Text(frame.Value(i, statement.ColTicker)),
			Suffix:            model.Text(frame.Value(i, "suffix")),
			Country:           model.Text(frame.Value(i, statement.ColCountry)),
			Reason:            model.Text(frame.Value(i, "reason")),
			ConfirmedManually: model.Bool(frame.Value(i, "confirmed_manually")),
		})
	}
	return records, nil
}
