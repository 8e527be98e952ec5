package model

// CatalogEntry is one tradable instrument from the broker catalog.
type CatalogEntry struct {
	Ticker  string `json:"ticker"`
	Country string `json:"country"`
	Name    string `json:"name"`
}

// QuarantineRecord marks a symbol whose extraction or transformation failed.
// Records are only ever removed by a human.
type QuarantineRecord struct {
	Ticker            string `json:"ticker"`
	Suffix            string `json:"suffix"`
	Country           string `json:"country"`
	Reason            string `json:"reason"`
	ConfirmedManually bool   `json:"confirmed_manually"`
}

// Symbol returns the record's (ticker, country) identity.
func (r QuarantineRecord) Symbol() Symbol {
	return Symbol{Ticker: r.Ticker, Country: r.Country}
}
