// Package catalog synchronizes the tradable-symbol universe from the broker
// instrument catalog into the sa_country_mapping table.
package catalog

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/internal/store"
	"github.com/sells-group/fscore-cli/pkg/xtb"
)

// ErrUnknownCategory is returned when the requested category is absent
// from the catalog response.
var ErrUnknownCategory = eris.New("catalog: unknown category")

var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// Options controls which instruments enter the catalog.
type Options struct {
	UserID     string
	Password   string
	Category   string
	IncludeCFD bool
}

// Writer persists a catalog snapshot, replacing the previous one.
type Writer interface {
	ReplaceCatalog(ctx context.Context, entries []model.CatalogEntry) (int64, error)
}

// Result summarizes one synchronization.
type Result struct {
	Received int `json:"received"`
	Written  int `json:"written"`
	Skipped  int `json:"skipped"`
}

// Synchronizer refreshes the catalog from the instrument provider.
type Synchronizer struct {
	client xtb.Client
	writer Writer
	opts   Options
	log    *zap.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(client xtb.Client, writer Writer, opts Options) *Synchronizer {
	return &Synchronizer{
		client: client,
		writer: writer,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "catalog")),
	}
}

// Sync logs in, fetches every instrument, filters and cleans them, and
// replaces the stored catalog. Login and transport failures are connection
// failures.
func (s *Synchronizer) Sync(ctx context.Context) (*Result, error) {
	if err := s.client.Login(ctx, s.opts.UserID, s.opts.Password); err != nil {
		_ = s.client.Close()
		return nil, resilience.NewConnectionError("xtb", eris.Wrap(err, "catalog: login"))
	}
	defer func() {
		if err := s.client.Logout(ctx); err != nil {
			s.log.Warn("logout failed", zap.Error(err))
		}
		_ = s.client.Close()
	}()

	raw, err := s.client.GetAllSymbols(ctx)
	if err != nil {
		return nil, resilience.NewConnectionError("xtb", eris.Wrap(err, "catalog: get all symbols"))
	}

	entries, skipped, err := Parse(raw, s.opts)
	if err != nil {
		return nil, err
	}

	n, err := s.writer.ReplaceCatalog(ctx, entries)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: replace")
	}

	res := &Result{Received: len(raw), Written: int(n), Skipped: skipped}
	s.log.Info("catalog synchronized",
		zap.Int("received", res.Received),
		zap.Int("written", res.Written),
		zap.Int("skipped", res.Skipped),
		zap.String("category", s.opts.Category),
	)
	return res, nil
}

// Parse filters raw instruments by category and CFD flag and derives
// ticker, country and display name from each. Entries are deduplicated by
// (ticker, country), first wins, and sorted by country then ticker. skipped
// counts records dropped for a malformed symbol code.
func Parse(raw []xtb.Symbol, opts Options) (entries []model.CatalogEntry, skipped int, err error) {
	if opts.Category != "" {
		categories := make(map[string]bool)
		for _, r := range raw {
			categories[r.CategoryName] = true
		}
		if !categories[opts.Category] {
			valid := make([]string, 0, len(categories))
			for c := range categories {
				valid = append(valid, c)
			}
			sort.Strings(valid)
			return nil, 0, eris.Wrapf(ErrUnknownCategory, "%s are valid categories, %q passed",
				strings.Join(valid, ", "), opts.Category)
		}
	}

	seen := make(map[model.Symbol]bool, len(raw))
	for _, r := range raw {
		if opts.Category != "" && r.CategoryName != opts.Category {
			continue
		}
		if !opts.IncludeCFD && strings.Contains(r.Description, "CFD") {
			continue
		}
		sym, ok := ParseSymbol(r.Symbol)
		if !ok {
			skipped++
			continue
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		entries = append(entries, model.CatalogEntry{
			Ticker:  sym.Ticker,
			Country: sym.Country,
			Name:    CleanName(r.Description),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Country != entries[j].Country {
			return entries[i].Country < entries[j].Country
		}
		return entries[i].Ticker < entries[j].Ticker
	})
	return entries, skipped, nil
}

// ParseSymbol splits a BASE.SUFFIX_MARKET code into ticker BASE and country
// SUFFIX. Codes without an exchange part are rejected.
func ParseSymbol(code string) (model.Symbol, bool) {
	parts := strings.Split(code, ".")
	if len(parts) < 2 || parts[0] == "" {
		return model.Symbol{}, false
	}
	country, _, _ := strings.Cut(parts[1], "_")
	if country == "" {
		return model.Symbol{}, false
	}
	return model.Symbol{Ticker: parts[0], Country: country}, true
}

// CleanName strips parenthesized text, normalizes to NFC and folds runs of
// whitespace.
func CleanName(description string) string {
	name := parenthetical.ReplaceAllString(description, "")
	name = norm.NFC.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// ReadEntries loads the stored catalog.
func ReadEntries(ctx context.Context, st store.Store) ([]model.CatalogEntry, error) {
	frame, err := st.Select(ctx, statement.TableCatalog, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read")
	}
	out := make([]model.CatalogEntry, 0, frame.Len())
	for i := range frame.Rows {
		out = append(out, model.CatalogEntry{
			Ticker:  model.Text(frame.Value(i, statement.ColTicker)),
			Country: model.Text(frame.Value(i, statement.ColCountry)),
			Name:    model.Text(frame.Value(i, "name")),
		})
	}
	return out, nil
}
