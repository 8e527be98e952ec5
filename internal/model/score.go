package model

import (
	"strconv"
	"time"
)

// NoDataLabel is shown in place of a score when history is insufficient.
const NoDataLabel = "No Data"

// Score is a 0-9 signal sum, or the "No Data" sentinel when Valid is false.
type Score struct {
	Value int
	Valid bool
}

// NewScore returns a valid score.
func NewScore(v int) Score {
	return Score{Value: v, Valid: true}
}

// NoData returns the insufficient-history sentinel.
func NoData() Score {
	return Score{}
}

func (s Score) String() string {
	if !s.Valid {
		return NoDataLabel
	}
	return strconv.Itoa(s.Value)
}

// ScoreResult is one row of the ranked output view.
type ScoreResult struct {
	Ticker               string     `json:"ticker"`
	Country              string     `json:"country"`
	Name                 string     `json:"name"`
	Score                Score      `json:"-"`
	TrailingPE           *float64   `json:"trailing_pe"`
	LastAsofDate         *time.Time `json:"last_asof_date"`
	Industry             string     `json:"industry"`
	Sector               string     `json:"sector"`
	Currency             string     `json:"currency"`
	DividendRate         *float64   `json:"dividend_rate"`
	Volume               *float64   `json:"volume"`
	MarketCap            *int64     `json:"market_cap"`
	TwoHundredDayAverage *float64   `json:"two_hundred_day_average"`
	Website              string     `json:"website"`
	LongBusinessSummary  string     `json:"long_business_summary"`
}

// Symbol returns the result's (ticker, country) identity.
func (r ScoreResult) Symbol() Symbol {
	return Symbol{Ticker: r.Ticker, Country: r.Country}
}
