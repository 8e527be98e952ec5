package extract

import (
	"context"
	"errors"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
	"github.com/sells-group/fscore-cli/internal/statement"
	"github.com/sells-group/fscore-cli/pkg/yahoo"
)

// Source fetches the raw payload of every statement kind for one provider
// symbol (e.g. "SAP.DE"). A returned error that satisfies
// resilience.IsConnectionFailure aborts the run; any other error quarantines
// the symbol.
type Source interface {
	Fetch(ctx context.Context, providerSymbol string, freq model.Frequency) (statement.Set, error)
}

// YahooSource adapts a yahoo.Client to Source.
type YahooSource struct {
	client yahoo.Client
}

// NewYahooSource creates a Source backed by client.
func NewYahooSource(client yahoo.Client) *YahooSource {
	return &YahooSource{client: client}
}

// Fetch requests statement history and the quote summary for symbol.
func (s *YahooSource) Fetch(ctx context.Context, symbol string, freq model.Frequency) (statement.Set, error) {
	st, err := s.client.Statements(ctx, symbol, yahoo.Frequency(freq))
	if err != nil {
		return nil, classify(err)
	}
	sum, err := s.client.Summary(ctx, symbol)
	if err != nil {
		return nil, classify(err)
	}

	return statement.Set{
		statement.Balance:    {Periods: periods(st.Balance)},
		statement.Income:     {Periods: periods(st.Income)},
		statement.CashFlow:   {Periods: periods(st.CashFlow)},
		statement.Statistics: {Record: sum.Detail},
		statement.Profile:    {Record: sum.Profile},
	}, nil
}

// classify turns provider-wide rejections into a run-fatal connection
// failure: a failed session bootstrap, rejected credentials or throttling.
// Anything else stays scoped to the symbol.
func classify(err error) error {
	var sess *yahoo.SessionError
	if errors.As(err, &sess) {
		return resilience.NewConnectionError("yahoo", err)
	}
	var se *yahoo.StatusError
	if errors.As(err, &se) && (resilience.IsAuthStatus(se.StatusCode) || resilience.IsThrottleStatus(se.StatusCode)) {
		return resilience.NewConnectionError("yahoo", err)
	}
	return err
}

func periods(in []yahoo.Period) []statement.Period {
	if len(in) == 0 {
		return nil
	}
	out := make([]statement.Period, len(in))
	for i, p := range in {
		out[i] = statement.Period{Date: p.Date, Values: p.Values}
	}
	return out
}
