package entity

import (
	"math"
	"time"
)

// Bar is one daily bar as returned by the provider.
// Close is NaN when the provider had no value for the day.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// HasClose reports whether the bar carries a usable close price.
func (b Bar) HasClose() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0)
}

// PricePoint is one close price per symbol per calendar date.
type PricePoint struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
}

// DividendEvent is a cash distribution of a non-FX symbol. Amount is always positive.
type DividendEvent struct {
	Symbol string
	Date   time.Time
	Amount float64
}

// SymbolData is everything fetched for one symbol in one cycle.
type SymbolData struct {
	Symbol    string
	IsFX      bool
	Prices    []PricePoint
	Dividends []DividendEvent
}

// Empty reports whether nothing was fetched.
func (d SymbolData) Empty() bool {
	return len(d.Prices) == 0 && len(d.Dividends) == 0
}

// Earliest returns the earliest price date, or zero time when there are no prices.
func (d SymbolData) Earliest() time.Time {
	var min time.Time
	for _, p := range d.Prices {
		if min.IsZero() || p.Date.Before(min) {
			min = p.Date
		}
	}
	return min
}

// Quote is the latest intraday price of a symbol. Time is expressed in the
// exchange's time zone.
type Quote struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// SymbolTable is the per-symbol slice of a provider response. Err is set when the
// provider reported a failure for this symbol only.
type SymbolTable struct {
	Bars []Bar
	Err  error
}

// SeriesResponse is the shape of a daily-series response.
// It is one of SingleSymbolTable, MultiSymbolTable or Ambiguous.
type SeriesResponse interface {
	seriesResponse()
}

// SingleSymbolTable is a flat response with one date axis and no symbol key.
type SingleSymbolTable struct {
	Symbol string
	Table  SymbolTable
}

// MultiSymbolTable is a response keyed by symbol.
type MultiSymbolTable struct {
	Tables map[string]SymbolTable
}

// Ambiguous is a response whose rows cannot be attributed to a symbol.
type Ambiguous struct {
	Requested []string
	Reason    string
}

func (SingleSymbolTable) seriesResponse() {}
func (MultiSymbolTable) seriesResponse()  {}
func (Ambiguous) seriesResponse()         {}
