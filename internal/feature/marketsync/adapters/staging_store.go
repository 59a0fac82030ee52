package adapters

import (
	"context"
	"fmt"
	"strings"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

// rowsPerInsert は1文のバインド変数を D1 の上限 100 以下に抑える行数です。
const rowsPerInsert = 30

type stagingStore struct {
	store sqlstore.Store
}

var _ usecase.StagingRepository = (*stagingStore)(nil)

func NewStagingRepository(store sqlstore.Store) *stagingStore {
	return &stagingStore{store: store}
}

// ReplaceStaged は銘柄のステージング行を入れ替えます。削除と挿入は1つのバッチです。
func (r *stagingStore) ReplaceStaged(ctx context.Context, data entity.SymbolData) error {
	prices := priceTableFor(data.Symbol)
	stmts := []sqlstore.Statement{
		sqlstore.NewStatement("DELETE FROM "+prices.staging+" WHERE symbol = ?", data.Symbol),
	}
	var divs seriesTable
	if !data.IsFX {
		divs = seriesTableFor(entity.KindDividend)
		stmts = append(stmts, sqlstore.NewStatement("DELETE FROM "+divs.staging+" WHERE symbol = ?", data.Symbol))
	}

	priceRows := make([][]any, 0, len(data.Prices))
	for _, p := range data.Prices {
		priceRows = append(priceRows, []any{data.Symbol, entity.FormatDate(p.Date), p.Price})
	}
	stmts = append(stmts, insertValues(prices.staging, prices.value, priceRows)...)

	if !data.IsFX {
		divRows := make([][]any, 0, len(data.Dividends))
		for _, d := range data.Dividends {
			divRows = append(divRows, []any{data.Symbol, entity.FormatDate(d.Date), d.Amount})
		}
		stmts = append(stmts, insertValues(divs.staging, divs.value, divRows)...)
	}
	return r.store.Batch(ctx, stmts)
}

// insertValues は rowsPerInsert 行ずつの複数行 INSERT 文を組み立てます。
func insertValues(table, value string, rows [][]any) []sqlstore.Statement {
	var out []sqlstore.Statement
	for len(rows) > 0 {
		n := min(rowsPerInsert, len(rows))
		chunk := rows[:n]
		rows = rows[n:]

		tuples := make([]string, len(chunk))
		params := make([]any, 0, len(chunk)*3)
		for i, row := range chunk {
			tuples[i] = "(" + sqlstore.Placeholders(len(row)) + ")"
			params = append(params, row...)
		}
		out = append(out, sqlstore.NewStatement(
			fmt.Sprintf("INSERT INTO %s (symbol, date, %s) VALUES %s", table, value, strings.Join(tuples, ", ")),
			params...,
		))
	}
	return out
}
