package adapters

import (
	"context"
	"fmt"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

type priceStore struct {
	store sqlstore.Store
}

var _ usecase.PriceRepository = (*priceStore)(nil)

func NewPriceRepository(store sqlstore.Store) *priceStore {
	return &priceStore{store: store}
}

// ListPrices は [from, to] の価格を日付昇順で返します。ゼロ値の境界は指定なしとして扱います。
func (r *priceStore) ListPrices(ctx context.Context, symbol string, from, to time.Time) ([]entity.PricePoint, error) {
	t := priceTableFor(symbol)
	sql := "SELECT symbol, date, price FROM " + t.live + " WHERE symbol = ?"
	params := []any{symbol}
	if !from.IsZero() {
		sql += " AND date >= ?"
		params = append(params, entity.FormatDate(from))
	}
	if !to.IsZero() {
		sql += " AND date <= ?"
		params = append(params, entity.FormatDate(to))
	}
	sql += " ORDER BY date ASC"

	rows, err := r.store.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PricePoint, 0, len(rows))
	for _, row := range rows {
		d, err := entity.ParseDate(row.String("date"))
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", symbol, err)
		}
		p, err := row.Float("price")
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", symbol, err)
		}
		out = append(out, entity.PricePoint{Symbol: symbol, Date: d, Price: p})
	}
	return out, nil
}
