// Package dto defines data transfer objects for the Twelve Data API responses.
package dto

// Meta describes the instrument of a time series.
type Meta struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"`
	Currency         string `json:"currency"`
	ExchangeTimezone string `json:"exchange_timezone"`
	Exchange         string `json:"exchange"`
	Type             string `json:"type"`
}

// Value is one bar. Numbers arrive as strings and may be missing.
type Value struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// TimeSeriesResponse represents one symbol's time_series payload. A multi-symbol
// request returns an object of these keyed by symbol.
type TimeSeriesResponse struct {
	Meta    Meta    `json:"meta"`
	Values  []Value `json:"values"`
	Status  string  `json:"status"`
	Code    int     `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}

// DividendsResponse represents the JSON response from the dividends endpoint.
type DividendsResponse struct {
	Meta      Meta       `json:"meta"`
	Dividends []Dividend `json:"dividends"`
	Status    string     `json:"status,omitempty"`
	Code      int        `json:"code,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type Dividend struct {
	ExDate string  `json:"ex_date"`
	Amount float64 `json:"amount"`
}
