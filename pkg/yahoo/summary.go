package yahoo

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Summary holds the point-in-time quote modules for one symbol, flattened
// to provider field name -> value. Formatted values are reduced to their
// raw number; empty objects become nil.
type Summary struct {
	Detail  map[string]any
	Profile map[string]any
}

func (c *httpClient) Summary(ctx context.Context, symbol string) (*Summary, error) {
	params := url.Values{}
	params.Set("modules", "summaryDetail,assetProfile")

	body, err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), params)
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: summary %s", symbol)
	}
	return parseSummary(body)
}

func parseSummary(body []byte) (*Summary, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("yahoo: malformed summary response")
	}
	root := gjson.ParseBytes(body)
	if e := root.Get("quoteSummary.error"); e.Exists() && e.Type != gjson.Null {
		return nil, eris.Errorf("yahoo: summary error: %s", e.Get("description").String())
	}
	result := root.Get("quoteSummary.result.0")
	if !result.Exists() {
		return nil, eris.New("yahoo: summary has no result")
	}
	return &Summary{
		Detail:  flatten(result.Get("summaryDetail")),
		Profile: flatten(result.Get("assetProfile")),
	}, nil
}

// flatten reduces one quoteSummary module to field -> scalar. Nested
// arrays and objects without a raw value (e.g. companyOfficers) are dropped.
func flatten(module gjson.Result) map[string]any {
	out := make(map[string]any)
	if !module.IsObject() {
		return out
	}
	module.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsObject():
			if raw := value.Get("raw"); raw.Exists() {
				out[key.String()] = raw.Value()
			} else if len(value.Map()) == 0 {
				out[key.String()] = nil
			}
		case value.IsArray():
		case value.Type == gjson.Null:
			out[key.String()] = nil
		default:
			out[key.String()] = value.Value()
		}
		return true
	})
	return out
}
