package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Symbol identifies a listed company by its bare ticker and the country of
// its listing. Provider exchange suffixes are never part of Ticker.
type Symbol struct {
	Ticker  string `json:"ticker"`
	Country string `json:"country"`
}

// Key returns the "{ticker}-{country}" form used to key raw payloads.
func (s Symbol) Key() string {
	return s.Ticker + "-" + s.Country
}

func (s Symbol) String() string {
	return s.Key()
}

// ParseSymbolKey splits a "{ticker}-{country}" key. Tickers may contain
// dashes (BRK-B), country codes never do, so the split is on the last dash.
func ParseSymbolKey(key string) (Symbol, error) {
	i := strings.LastIndex(key, "-")
	if i <= 0 || i == len(key)-1 {
		return Symbol{}, eris.Errorf("model: invalid symbol key %q", key)
	}
	return Symbol{Ticker: key[:i], Country: key[i+1:]}, nil
}

// Universe maps a country code to the tickers listed there.
type Universe map[string][]string

// Countries returns the universe's country codes in sorted order.
func (u Universe) Countries() []string {
	out := make([]string, 0, len(u))
	for c := range u {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Restrict returns a copy holding only the named countries. An empty list
// returns the whole universe.
func (u Universe) Restrict(countries []string) Universe {
	if len(countries) == 0 {
		return u
	}
	out := make(Universe, len(countries))
	for _, c := range countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if tickers, ok := u[c]; ok {
			out[c] = tickers
		}
	}
	return out
}

// Size returns the total number of tickers across all countries.
func (u Universe) Size() int {
	n := 0
	for _, tickers := range u {
		n += len(tickers)
	}
	return n
}

// UniverseFromCatalog groups catalog entries by country, dropping duplicate
// tickers within a country. Tickers keep their first-seen order.
func UniverseFromCatalog(entries []CatalogEntry) Universe {
	u := make(Universe)
	seen := make(map[Symbol]bool, len(entries))
	for _, e := range entries {
		sym := Symbol{Ticker: e.Ticker, Country: e.Country}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		u[e.Country] = append(u[e.Country], e.Ticker)
	}
	return u
}
