package adapters

// SeriesRow は (symbol, date, value) 形式の全テーブルに共通の行です。
// 日付は YYYY-MM-DD の文字列で保存します。
type SeriesRow struct {
	Symbol string `gorm:"primaryKey;size:32"`
	Date   string `gorm:"primaryKey;size:10"`
}

type PriceHistoryModel struct {
	SeriesRow
	Price float64 `gorm:"not null"`
}

func (PriceHistoryModel) TableName() string { return tablePriceHistory }

type PriceHistoryStagingModel struct {
	SeriesRow
	Price float64 `gorm:"not null"`
}

func (PriceHistoryStagingModel) TableName() string { return tablePriceHistory + stagingSuffix }

type ExchangeRateModel struct {
	SeriesRow
	Price float64 `gorm:"not null"`
}

func (ExchangeRateModel) TableName() string { return tableExchangeRates }

type ExchangeRateStagingModel struct {
	SeriesRow
	Price float64 `gorm:"not null"`
}

func (ExchangeRateStagingModel) TableName() string { return tableExchangeRates + stagingSuffix }

type DividendHistoryModel struct {
	SeriesRow
	Dividend float64 `gorm:"not null"`
}

func (DividendHistoryModel) TableName() string { return tableDividendHistory }

type DividendHistoryStagingModel struct {
	SeriesRow
	Dividend float64 `gorm:"not null"`
}

func (DividendHistoryStagingModel) TableName() string { return tableDividendHistory + stagingSuffix }

type CoverageModel struct {
	Symbol       string `gorm:"primaryKey;size:32"`
	EarliestDate string `gorm:"size:10"`
	LastUpdated  string `gorm:"size:10"`
}

func (CoverageModel) TableName() string { return tableCoverage }

// 以下はポートフォリオ側が所有するテーブルです。同期処理は読み取りと dirty フラグの更新のみ行います。

type HoldingModel struct {
	ID       uint    `gorm:"primaryKey"`
	UID      string  `gorm:"column:uid;size:64;not null;index"`
	Symbol   string  `gorm:"size:32;not null"`
	Currency string  `gorm:"size:8;not null"`
	Quantity float64 `gorm:"not null;default:0"`
}

func (HoldingModel) TableName() string { return "holdings" }

type ControlModel struct {
	UID   string `gorm:"column:uid;primaryKey;size:64"`
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"size:255"`
}

func (ControlModel) TableName() string { return "controls" }

type TransactionModel struct {
	ID       string  `gorm:"primaryKey;size:64"`
	UID      string  `gorm:"column:uid;size:64;not null;index"`
	Symbol   string  `gorm:"size:32;not null;index"`
	Type     string  `gorm:"size:16;not null"`
	Date     string  `gorm:"size:10;not null"`
	Quantity float64 `gorm:"not null"`
	Currency string  `gorm:"size:8"`
}

func (TransactionModel) TableName() string { return "transactions" }

type GroupModel struct {
	ID      string `gorm:"primaryKey;size:64"`
	UID     string `gorm:"column:uid;size:64;not null;index"`
	IsDirty int    `gorm:"not null;default:0"`
}

func (GroupModel) TableName() string { return "groups" }

type GroupTransactionInclusionModel struct {
	UID           string `gorm:"column:uid;primaryKey;size:64"`
	GroupID       string `gorm:"primaryKey;size:64"`
	TransactionID string `gorm:"primaryKey;size:64"`
}

func (GroupTransactionInclusionModel) TableName() string { return "group_transaction_inclusions" }

// Models は同期が扱う全テーブルを返します。ローカルストアの AutoMigrate に使います。
func Models() []any {
	return []any{
		&PriceHistoryModel{},
		&PriceHistoryStagingModel{},
		&ExchangeRateModel{},
		&ExchangeRateStagingModel{},
		&DividendHistoryModel{},
		&DividendHistoryStagingModel{},
		&CoverageModel{},
		&HoldingModel{},
		&ControlModel{},
		&TransactionModel{},
		&GroupModel{},
		&GroupTransactionInclusionModel{},
	}
}
