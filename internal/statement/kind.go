// Package statement describes the persisted financial tables: the tagged
// statement kinds, their schemas, and projection of raw provider records
// onto those schemas.
package statement

import "fmt"

// Kind is one of the five per-symbol payload types the statement provider
// returns.
type Kind int

const (
	Balance Kind = iota
	Income
	CashFlow
	Statistics
	Profile
)

// Kinds lists every kind in load order.
var Kinds = []Kind{Balance, Income, CashFlow, Statistics, Profile}

// Periodic lists the kinds that carry per-period history.
var Periodic = []Kind{Balance, Income, CashFlow}

func (k Kind) String() string {
	switch k {
	case Balance:
		return "balance"
	case Income:
		return "income"
	case CashFlow:
		return "cash"
	case Statistics:
		return "stats"
	case Profile:
		return "profile"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsPeriodic reports whether the kind holds a sequence of reporting periods
// rather than a single point-in-time record.
func (k Kind) IsPeriodic() bool {
	switch k {
	case Balance, Income, CashFlow:
		return true
	case Statistics, Profile:
		return false
	}
	panic(fmt.Sprintf("statement: unknown kind %d", int(k)))
}

// Schema returns the persisted schema for the kind.
func (k Kind) Schema() Schema {
	switch k {
	case Balance:
		return BalanceSchema
	case Income:
		return IncomeSchema
	case CashFlow:
		return CashFlowSchema
	case Statistics:
		return StatisticsSchema
	case Profile:
		return ProfileSchema
	}
	panic(fmt.Sprintf("statement: unknown kind %d", int(k)))
}
