package yahoo

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Period is one reporting date of a statement, keyed by provider field
// name (e.g. "totalAssets").
type Period struct {
	Date   time.Time
	Values map[string]any
}

// Statements holds the three statement histories for one symbol, newest
// period first.
type Statements struct {
	Balance  []Period
	Income   []Period
	CashFlow []Period
}

var (
	balanceTypes = []string{
		"TotalAssets", "LongTermDebt", "CurrentAssets", "CurrentLiabilities",
		"CommonStock", "StockholdersEquity", "CashAndCashEquivalents",
	}
	incomeTypes = []string{
		"NetIncome", "TotalRevenue", "GrossProfit", "OperatingIncome", "DilutedEPS",
	}
	cashFlowTypes = []string{
		"OperatingCashFlow", "FreeCashFlow", "CapitalExpenditure",
	}
)

// historyStart bounds the timeseries query; the provider serves at most a
// few years regardless.
var historyStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func (c *httpClient) Statements(ctx context.Context, symbol string, freq Frequency) (*Statements, error) {
	if freq == "" {
		freq = Annual
	}
	if freq != Annual && freq != Quarterly {
		return nil, eris.Errorf("yahoo: unknown frequency %q", freq)
	}

	prefix := string(freq)
	var types []string
	for _, group := range [][]string{balanceTypes, incomeTypes, cashFlowTypes} {
		for _, t := range group {
			types = append(types, prefix+t)
		}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", strings.Join(types, ","))
	params.Set("period1", strconv.FormatInt(historyStart.Unix(), 10))
	params.Set("period2", strconv.FormatInt(time.Now().Unix(), 10))

	body, err := c.get(ctx, "/ws/fundamentals-timeseries/v1/finance/timeseries/"+url.PathEscape(symbol), params)
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: statements %s", symbol)
	}
	return parseTimeseries(body, prefix)
}

// parseTimeseries groups the per-field series into statements by date.
func parseTimeseries(body []byte, prefix string) (*Statements, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.New("yahoo: malformed timeseries response")
	}
	root := gjson.ParseBytes(body)
	if e := root.Get("timeseries.error"); e.Exists() && e.Type != gjson.Null {
		return nil, eris.Errorf("yahoo: timeseries error: %s", e.Get("description").String())
	}

	group := make(map[string]string)
	for _, t := range balanceTypes {
		group[t] = "balance"
	}
	for _, t := range incomeTypes {
		group[t] = "income"
	}
	for _, t := range cashFlowTypes {
		group[t] = "cash"
	}

	byDate := map[string]map[string]map[string]any{
		"balance": {},
		"income":  {},
		"cash":    {},
	}
	for _, series := range root.Get("timeseries.result").Array() {
		typ := series.Get("meta.type.0").String()
		name := strings.TrimPrefix(typ, prefix)
		stmt, ok := group[name]
		if !ok || name == typ {
			continue
		}
		field := lowerFirst(name)
		for _, point := range series.Get(typ).Array() {
			if point.Type == gjson.Null {
				continue
			}
			date := point.Get("asOfDate").String()
			raw := point.Get("reportedValue.raw")
			if date == "" || !raw.Exists() {
				continue
			}
			if byDate[stmt][date] == nil {
				byDate[stmt][date] = make(map[string]any)
			}
			byDate[stmt][date][field] = raw.Value()
		}
	}

	out := &Statements{}
	var err error
	if out.Balance, err = periods(byDate["balance"]); err != nil {
		return nil, err
	}
	if out.Income, err = periods(byDate["income"]); err != nil {
		return nil, err
	}
	if out.CashFlow, err = periods(byDate["cash"]); err != nil {
		return nil, err
	}
	return out, nil
}

func periods(byDate map[string]map[string]any) ([]Period, error) {
	out := make([]Period, 0, len(byDate))
	for date, values := range byDate {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, eris.Wrapf(err, "yahoo: parse period date %q", date)
		}
		out = append(out, Period{Date: d, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
