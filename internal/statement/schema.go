package statement

// ColumnType is the storage type of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Float
	BigInt
	Int
	Date
	Bool
)

// Column names a persisted column and the raw provider field feeding it.
// Tag columns (asof_date, ticker, country) have no Source.
type Column struct {
	Name   string
	Source string
	Type   ColumnType
}

// Schema is a table's exact, ordered column set.
type Schema struct {
	Table   string
	Columns []Column
	Key     []string
}

// Names returns the ordered column names.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the schema declares column.
func (s Schema) Has(column string) bool {
	for _, c := range s.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}

// Tag column names shared by every statement table.
const (
	ColAsofDate = "asof_date"
	ColTicker   = "ticker"
	ColCountry  = "country"
)

// Table names.
const (
	TableBalance    = "sa_balance_sheet"
	TableIncome     = "sa_profit_loss_statement"
	TableCashFlow   = "sa_cashflow_statement"
	TableStatistics = "sa_stock_statistics"
	TableProfile    = "sa_stock_profile"
	TableCatalog    = "sa_country_mapping"
	TableQuarantine = "sa_erroneous_symbols"
	TableScores     = "sa_piotroski_results"
)

var tagColumns = []Column{
	{Name: ColAsofDate, Type: Date},
	{Name: ColTicker, Type: Text},
	{Name: ColCountry, Type: Text},
}

var snapshotKey = []string{ColAsofDate, ColTicker, ColCountry}

func tagged(cols ...Column) []Column {
	out := make([]Column, 0, len(tagColumns)+len(cols))
	out = append(out, tagColumns...)
	return append(out, cols...)
}

var (
	BalanceSchema = Schema{
		Table: TableBalance,
		Columns: tagged(
			Column{Name: "total_assets", Source: "totalAssets", Type: BigInt},
			Column{Name: "long_term_debt", Source: "longTermDebt", Type: BigInt},
			Column{Name: "current_assets", Source: "currentAssets", Type: BigInt},
			Column{Name: "current_liabilities", Source: "currentLiabilities", Type: BigInt},
			Column{Name: "common_stock", Source: "commonStock", Type: BigInt},
		),
		Key: snapshotKey,
	}

	IncomeSchema = Schema{
		Table: TableIncome,
		Columns: tagged(
			Column{Name: "net_income", Source: "netIncome", Type: BigInt},
			Column{Name: "total_revenue", Source: "totalRevenue", Type: BigInt},
			Column{Name: "gross_profit", Source: "grossProfit", Type: BigInt},
		),
		Key: snapshotKey,
	}

	CashFlowSchema = Schema{
		Table: TableCashFlow,
		Columns: tagged(
			Column{Name: "operating_cash_flow", Source: "operatingCashFlow", Type: BigInt},
		),
		Key: snapshotKey,
	}

	StatisticsSchema = Schema{
		Table: TableStatistics,
		Columns: tagged(
			Column{Name: "currency", Source: "currency", Type: Text},
			Column{Name: "trailing_pe", Source: "trailingPE", Type: Float},
			Column{Name: "dividend_rate", Source: "dividendRate", Type: Float},
			Column{Name: "volume", Source: "volume", Type: Float},
			Column{Name: "market_cap", Source: "marketCap", Type: BigInt},
			Column{Name: "two_hundred_day_average", Source: "twoHundredDayAverage", Type: Float},
		),
		Key: snapshotKey,
	}

	ProfileSchema = Schema{
		Table: TableProfile,
		Columns: tagged(
			Column{Name: "industry", Source: "industry", Type: Text},
			Column{Name: "sector", Source: "sector", Type: Text},
			Column{Name: "website", Source: "website", Type: Text},
			Column{Name: "long_business_summary", Source: "longBusinessSummary", Type: Text},
		),
		Key: snapshotKey,
	}

	CatalogSchema = Schema{
		Table: TableCatalog,
		Columns: []Column{
			{Name: ColTicker, Type: Text},
			{Name: ColCountry, Type: Text},
			{Name: "name", Type: Text},
		},
		Key: []string{ColTicker, ColCountry},
	}

	QuarantineSchema = Schema{
		Table: TableQuarantine,
		Columns: []Column{
			{Name: ColTicker, Type: Text},
			{Name: "suffix", Type: Text},
			{Name: ColCountry, Type: Text},
			{Name: "reason", Type: Text},
			{Name: "confirmed_manually", Type: Bool},
		},
		Key: []string{ColTicker, "suffix"},
	}

	ScoreSchema = Schema{
		Table: TableScores,
		Columns: []Column{
			{Name: ColTicker, Type: Text},
			{Name: ColCountry, Type: Text},
			{Name: "name", Type: Text},
			{Name: "piotroski_f_score", Type: Int},
			{Name: "trailing_pe", Type: Float},
			{Name: "last_asof_date", Type: Date},
			{Name: "industry", Type: Text},
			{Name: "sector", Type: Text},
			{Name: "currency", Type: Text},
			{Name: "dividend_rate", Type: Float},
			{Name: "volume", Type: Float},
			{Name: "market_cap", Type: BigInt},
			{Name: "two_hundred_day_average", Type: Float},
			{Name: "website", Type: Text},
			{Name: "long_business_summary", Type: Text},
		},
		Key: []string{ColTicker, ColCountry},
	}
)
