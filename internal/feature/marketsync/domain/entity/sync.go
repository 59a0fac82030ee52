package entity

import "time"

// Mode selects the sync policy.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullRefresh Mode = "refresh"
	ModeIntraday    Mode = "intraday"
)

// Strategy selects how staged rows are promoted into the authoritative tables.
type Strategy string

const (
	// StrategyUpsert merges staged rows on (symbol, date).
	StrategyUpsert Strategy = "upsert"
	// StrategyReplace deletes the symbol's rows then copies the staged rows.
	StrategyReplace Strategy = "replace"
	// StrategySwap rebuilds the whole table in a shadow table and renames it into place.
	StrategySwap Strategy = "swap"
)

// SeriesKind names one family of authoritative tables.
type SeriesKind string

const (
	KindPrice    SeriesKind = "price"
	KindFX       SeriesKind = "fx"
	KindDividend SeriesKind = "dividend"
)

// PriceKind returns the kind holding symbol's prices.
func PriceKind(symbol string) SeriesKind {
	if IsFX(symbol) {
		return KindFX
	}
	return KindPrice
}

// CoverageRecord tracks the stored history of a symbol.
type CoverageRecord struct {
	Symbol       string    `json:"symbol"`
	EarliestDate time.Time `json:"earliest_date"`
	LastUpdated  time.Time `json:"last_updated"`
}

// TransactionLeg is the part of a user transaction the coverage policy needs.
type TransactionLeg struct {
	Type     string
	Quantity float64
	Date     time.Time
}

// FetchWindow is the computed date range for one symbol. Skip is set when the
// symbol is already current.
type FetchWindow struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Skip   bool
}

// FetchRequest asks the fetcher for one symbol over its own window.
type FetchRequest struct {
	Symbol string
	IsFX   bool
	Start  time.Time
	End    time.Time
}

// FetchResult pairs the fetched data with its originating request.
type FetchResult struct {
	Request FetchRequest
	Data    SymbolData
	Err     error
}

// RunSummary reports the outcome of one sync cycle.
type RunSummary struct {
	RunID     string
	Mode      Mode
	Planned   int
	Succeeded int
	Skipped   int
	Failed    int
	Changed   []string
	Failures  map[string]string
}

// RecordFailure counts symbol as failed with err.
func (s *RunSummary) RecordFailure(symbol string, err error) {
	if s.Failures == nil {
		s.Failures = map[string]string{}
	}
	s.Failures[symbol] = err.Error()
	s.Failed++
}
