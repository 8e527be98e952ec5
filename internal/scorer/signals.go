// Package scorer computes the nine-signal Piotroski F-score from stored
// statement history and assembles the ranked score view.
package scorer

import (
	"time"

	"github.com/sells-group/fscore-cli/internal/model"
)

// MinPeriods is the history length a score needs: latest, prior and
// two-prior periods.
const MinPeriods = 3

// Period is one reporting date of a symbol's joined balance, income and
// cash-flow statements. Nil fields were not reported.
type Period struct {
	Date time.Time

	TotalAssets        *float64
	LongTermDebt       *float64
	CurrentAssets      *float64
	CurrentLiabilities *float64
	CommonStock        *float64

	NetIncome    *float64
	TotalRevenue *float64
	GrossProfit  *float64

	OperatingCashFlow *float64
}

// Signal identifies one of the nine binary tests.
type Signal int

const (
	PositiveROA Signal = iota
	PositiveOperatingCashFlow
	ImprovingROA
	CashFlowQuality
	DecreasingLeverage
	ImprovingLiquidity
	NoDilution
	ImprovingGrossMargin
	ImprovingAssetTurnover
)

var signalNames = [...]string{
	"positive_roa",
	"positive_operating_cash_flow",
	"improving_roa",
	"cash_flow_quality",
	"decreasing_leverage",
	"improving_liquidity",
	"no_dilution",
	"improving_gross_margin",
	"improving_asset_turnover",
}

func (s Signal) String() string {
	return signalNames[s]
}

// Signals holds the outcome of each test, indexed by Signal.
type Signals [9]bool

// Sum returns the number of passed tests.
func (s Signals) Sum() int {
	n := 0
	for _, ok := range s {
		if ok {
			n++
		}
	}
	return n
}

// Evaluate scores history, newest period first. With fewer than MinPeriods
// periods it returns the No Data score and no signals. A test whose ratio is
// undefined (missing operand or zero denominator) fails.
func Evaluate(history []Period) (model.Score, Signals) {
	var s Signals
	if len(history) < MinPeriods {
		return model.NoData(), s
	}
	ly, py, ppy := history[0], history[1], history[2]

	roaLY, okLY := div(ly.NetIncome, avg(ly.TotalAssets, py.TotalAssets))
	roaPY, okPY := div(py.NetIncome, avg(py.TotalAssets, ppy.TotalAssets))

	s[PositiveROA] = okLY && roaLY > 0
	s[PositiveOperatingCashFlow] = ly.OperatingCashFlow != nil && *ly.OperatingCashFlow > 0
	s[ImprovingROA] = okLY && okPY && roaLY > roaPY

	if cfo, ok := div(ly.OperatingCashFlow, ly.TotalAssets); ok && okLY {
		s[CashFlowQuality] = cfo > roaLY
	}
	s[DecreasingLeverage] = less(
		ratio(ly.LongTermDebt, ly.TotalAssets),
		ratio(py.LongTermDebt, py.TotalAssets),
	)
	s[ImprovingLiquidity] = less(
		ratio(py.CurrentAssets, py.CurrentLiabilities),
		ratio(ly.CurrentAssets, ly.CurrentLiabilities),
	)
	s[NoDilution] = ly.CommonStock != nil && py.CommonStock != nil && *ly.CommonStock <= *py.CommonStock
	s[ImprovingGrossMargin] = less(
		ratio(py.GrossProfit, py.TotalRevenue),
		ratio(ly.GrossProfit, ly.TotalRevenue),
	)
	s[ImprovingAssetTurnover] = less(
		ratio(py.TotalRevenue, avg(py.TotalAssets, ppy.TotalAssets)),
		ratio(ly.TotalRevenue, avg(ly.TotalAssets, py.TotalAssets)),
	)

	return model.NewScore(s.Sum()), s
}

type maybe struct {
	v  float64
	ok bool
}

func ratio(num, den *float64) maybe {
	v, ok := div(num, den)
	return maybe{v, ok}
}

// less reports a < b when both are defined.
func less(a, b maybe) bool {
	return a.ok && b.ok && a.v < b.v
}

func div(num, den *float64) (float64, bool) {
	if num == nil || den == nil || *den == 0 {
		return 0, false
	}
	return *num / *den, true
}

func avg(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	m := (*a + *b) / 2
	return &m
}
