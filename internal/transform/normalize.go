// Package transform turns raw per-symbol provider payloads into one
// schema-exact frame per statement kind.
package transform

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
	"github.com/sells-group/fscore-cli/internal/statement"
)

// EmptySymbol is a symbol excluded from a batch because one of its periodic
// payloads carried no data.
type EmptySymbol struct {
	Symbol model.Symbol
	Kind   statement.Kind
}

// Reason is the text recorded in the quarantine ledger.
func (e EmptySymbol) Reason() string {
	return "Empty " + e.Kind.String()
}

// Result is a normalized batch.
type Result struct {
	// Frames holds one frame per kind, columns in schema order.
	Frames map[statement.Kind]model.Frame
	// Symbols lists the symbols present in Frames, sorted by key.
	Symbols []model.Symbol
	// Empty lists the symbols excluded for an empty payload.
	Empty []EmptySymbol
}

// Rows returns the total row count across frames.
func (r *Result) Rows() int {
	n := 0
	for _, f := range r.Frames {
		n += f.Len()
	}
	return n
}

// Normalize flattens batch into one frame per kind. Periodic payloads yield
// one row per reporting period; statistics and profile records are stamped
// with asOf. A symbol with an empty balance, income or cash payload is
// excluded from every frame and reported in Result.Empty. If no symbol
// remains, Normalize returns the Result (so callers can record the empty
// symbols) together with an error wrapping resilience.ErrEmptyStatement.
func Normalize(batch statement.Batch, asOf time.Time) (*Result, error) {
	asOfDate, _ := model.Date(asOf)

	keys := symbolKeys(batch)
	res := &Result{Frames: make(map[statement.Kind]model.Frame, len(statement.Kinds))}
	for _, k := range statement.Kinds {
		res.Frames[k] = k.Schema().Frame()
	}

	type rowKey struct {
		date   time.Time
		symbol model.Symbol
	}
	seen := make(map[statement.Kind]map[rowKey]bool, len(statement.Kinds))
	for _, k := range statement.Kinds {
		seen[k] = make(map[rowKey]bool)
	}

	for _, key := range keys {
		sym, err := model.ParseSymbolKey(key)
		if err != nil {
			return nil, eris.Wrap(err, "transform: normalize")
		}

		if kind, empty := firstEmpty(batch, key); empty {
			res.Empty = append(res.Empty, EmptySymbol{Symbol: sym, Kind: kind})
			continue
		}
		res.Symbols = append(res.Symbols, sym)

		for _, k := range statement.Kinds {
			schema := k.Schema()
			frame := res.Frames[k]
			payload := batch[k][key]

			if k.IsPeriodic() {
				for _, p := range payload.Periods {
					date, ok := model.Date(p.Date)
					if !ok || date.IsZero() {
						continue
					}
					rk := rowKey{date: date, symbol: sym}
					if seen[k][rk] {
						continue
					}
					seen[k][rk] = true
					frame.Rows = append(frame.Rows, schema.Project(tags(date, sym), p.Values))
				}
			} else {
				rk := rowKey{date: asOfDate, symbol: sym}
				if !seen[k][rk] {
					seen[k][rk] = true
					frame.Rows = append(frame.Rows, schema.Project(tags(asOfDate, sym), payload.Record))
				}
			}
			res.Frames[k] = frame
		}
	}

	for _, k := range statement.Kinds {
		if err := k.Schema().Check(res.Frames[k]); err != nil {
			return nil, eris.Wrap(err, "transform: normalize")
		}
	}

	if len(res.Symbols) == 0 {
		return res, eris.Wrapf(resilience.ErrEmptyStatement, "transform: all %d symbols empty", len(keys))
	}
	return res, nil
}

func tags(date time.Time, sym model.Symbol) statement.Record {
	return statement.Record{
		statement.ColAsofDate: date,
		statement.ColTicker:   sym.Ticker,
		statement.ColCountry:  sym.Country,
	}
}

// firstEmpty returns the first periodic kind whose payload for key is
// missing or empty.
func firstEmpty(batch statement.Batch, key string) (statement.Kind, bool) {
	for _, k := range statement.Periodic {
		if batch[k][key].Empty() {
			return k, true
		}
	}
	return 0, false
}

func symbolKeys(batch statement.Batch) []string {
	set := make(map[string]bool)
	for _, bySymbol := range batch {
		for key := range bySymbol {
			set[key] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
