package extract

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fscore-cli/internal/catalog"
	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/store"
)

// LoadUniverseFile reads a YAML mapping of country code to tickers:
//
//	DE: [SAP, BMW]
//	US: [AAPL]
//
// Country codes are upper-cased; blank and duplicate tickers are dropped.
func LoadUniverseFile(path string) (model.Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read universe %s", path)
	}
	return ParseUniverse(data)
}

// ParseUniverse decodes a YAML universe document.
func ParseUniverse(data []byte) (model.Universe, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "extract: parse universe")
	}

	u := make(model.Universe, len(raw))
	for country, tickers := range raw {
		country = strings.ToUpper(strings.TrimSpace(country))
		if country == "" {
			continue
		}
		seen := make(map[string]bool, len(u[country])+len(tickers))
		for _, t := range u[country] {
			seen[t] = true
		}
		for _, t := range tickers {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			u[country] = append(u[country], t)
		}
	}
	return u, nil
}

// UniverseFromStore builds the universe from the stored catalog snapshot.
func UniverseFromStore(ctx context.Context, st store.Store) (model.Universe, error) {
	entries, err := catalog.ReadEntries(ctx, st)
	if err != nil {
		return nil, err
	}
	return model.UniverseFromCatalog(entries), nil
}
