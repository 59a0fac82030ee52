package adapters

import (
	"fmt"
	"regexp"

	"market_sync/internal/feature/marketsync/domain/entity"
)

const (
	tablePriceHistory    = "price_history"
	tableExchangeRates   = "exchange_rates"
	tableDividendHistory = "dividend_history"
	tableCoverage        = "market_data_coverage"

	stagingSuffix = "_staging"
)

// seriesTable は (symbol, date, value) 形式のテーブル群を表します。
type seriesTable struct {
	live    string
	staging string
	value   string
}

func seriesTableFor(kind entity.SeriesKind) seriesTable {
	switch kind {
	case entity.KindFX:
		return seriesTable{live: tableExchangeRates, staging: tableExchangeRates + stagingSuffix, value: "price"}
	case entity.KindDividend:
		return seriesTable{live: tableDividendHistory, staging: tableDividendHistory + stagingSuffix, value: "dividend"}
	default:
		return seriesTable{live: tablePriceHistory, staging: tablePriceHistory + stagingSuffix, value: "price"}
	}
}

// priceTableFor は symbol の価格を保持するテーブル群を返します。
func priceTableFor(symbol string) seriesTable {
	return seriesTableFor(entity.PriceKind(symbol))
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// createSeriesTableSQL は sqlite と postgres の両方で動きます。
func createSeriesTableSQL(name, value string) string {
	return fmt.Sprintf(
		"CREATE TABLE %s (symbol VARCHAR(32) NOT NULL, date VARCHAR(10) NOT NULL, %s DOUBLE PRECISION NOT NULL, PRIMARY KEY (symbol, date))",
		name, value,
	)
}

// upsertFromStagingSQL は1銘柄のステージング行を本テーブルへ反映します。
func (t seriesTable) upsertFromStagingSQL() string {
	return fmt.Sprintf(
		"INSERT INTO %[1]s (symbol, date, %[3]s) SELECT symbol, date, %[3]s FROM %[2]s WHERE symbol = ? ON CONFLICT(symbol, date) DO UPDATE SET %[3]s = excluded.%[3]s",
		t.live, t.staging, t.value,
	)
}

func (t seriesTable) insertFromStagingSQL() string {
	return fmt.Sprintf(
		"INSERT INTO %[1]s (symbol, date, %[3]s) SELECT symbol, date, %[3]s FROM %[2]s WHERE symbol = ?",
		t.live, t.staging, t.value,
	)
}
