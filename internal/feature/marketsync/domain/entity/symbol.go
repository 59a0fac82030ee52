// Package entity defines the domain types of the market data sync.
package entity

import (
	"sort"
	"strings"
)

// FXMarker distinguishes currency pairs ("USD/TWD") from tradable tickers.
const FXMarker = "/"

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsFX reports whether symbol is a currency pair.
func IsFX(symbol string) bool {
	return strings.Contains(symbol, FXMarker)
}

// Holding is one distinct (symbol, currency) pair held by any user.
type Holding struct {
	Symbol   string
	Currency string
}

// Targets is the set of symbols and users a sync cycle works on.
type Targets struct {
	Symbols    []string
	Benchmarks map[string]struct{}
	UserIDs    []string
}

// IsBenchmark reports whether symbol is configured as a benchmark by any user.
func (t Targets) IsBenchmark(symbol string) bool {
	_, ok := t.Benchmarks[symbol]
	return ok
}

// Empty reports whether there is nothing to sync.
func (t Targets) Empty() bool {
	return len(t.Symbols) == 0
}

// SortedKeys returns the keys of a string set in ascending order.
func SortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
