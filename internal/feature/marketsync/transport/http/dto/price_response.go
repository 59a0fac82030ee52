// Package dto defines the JSON bodies of the market data read API.
package dto

// PricePoint は1日分の終値です。
type PricePoint struct {
	Date  string  `json:"date"`  // YYYY-MM-DD
	Price float64 `json:"price"` // 終値または為替レート
}

// PricesResponse は銘柄の価格系列のレスポンスDTOです。
type PricesResponse struct {
	Symbol string       `json:"symbol"`
	Prices []PricePoint `json:"prices"`
}

// CoverageResponse は銘柄の保存済み期間のレスポンスDTOです。
type CoverageResponse struct {
	Symbol       string `json:"symbol"`
	EarliestDate string `json:"earliest_date"`
	LastUpdated  string `json:"last_updated"`
}

// LivePrice は最新価格です。キーが銘柄のマップとして返されます。
type LivePrice struct {
	Price float64 `json:"price"`
	Time  string  `json:"time"` // RFC3339, 取引所のタイムゾーン
}

// ErrorResponse はエラーレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
