package adapters

import (
	"context"
	"fmt"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

type coverageStore struct {
	store sqlstore.Store
}

var _ usecase.CoverageRepository = (*coverageStore)(nil)

func NewCoverageRepository(store sqlstore.Store) *coverageStore {
	return &coverageStore{store: store}
}

func (r *coverageStore) LatestPriceDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	t := priceTableFor(symbol)
	rows, err := r.store.Query(ctx, fmt.Sprintf("SELECT MAX(date) AS latest_date FROM %s WHERE symbol = ?", t.live), symbol)
	if err != nil {
		return time.Time{}, false, err
	}
	return firstDate(rows, "latest_date")
}

func (r *coverageStore) FirstTransactionDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	rows, err := r.store.Query(ctx, "SELECT MIN(date) AS first_date FROM transactions WHERE symbol = ?", symbol)
	if err != nil {
		return time.Time{}, false, err
	}
	return firstDate(rows, "first_date")
}

func (r *coverageStore) GlobalFirstTransactionDate(ctx context.Context) (time.Time, bool, error) {
	rows, err := r.store.Query(ctx, "SELECT MIN(date) AS first_date FROM transactions")
	if err != nil {
		return time.Time{}, false, err
	}
	return firstDate(rows, "first_date")
}

func (r *coverageStore) ListTransactions(ctx context.Context, symbol string) ([]entity.TransactionLeg, error) {
	rows, err := r.store.Query(ctx, "SELECT type, quantity, date FROM transactions WHERE symbol = ? ORDER BY date ASC", symbol)
	if err != nil {
		return nil, err
	}
	out := make([]entity.TransactionLeg, 0, len(rows))
	for _, row := range rows {
		d, err := entity.ParseDate(row.String("date"))
		if err != nil {
			return nil, fmt.Errorf("transaction of %s: %w", symbol, err)
		}
		q, err := row.Float("quantity")
		if err != nil {
			return nil, fmt.Errorf("transaction of %s: %w", symbol, err)
		}
		out = append(out, entity.TransactionLeg{Type: row.String("type"), Quantity: q, Date: d})
	}
	return out, nil
}

func (r *coverageStore) FindCoverage(ctx context.Context, symbol string) (entity.CoverageRecord, bool, error) {
	rows, err := r.store.Query(ctx, "SELECT symbol, earliest_date, last_updated FROM "+tableCoverage+" WHERE symbol = ?", symbol)
	if err != nil {
		return entity.CoverageRecord{}, false, err
	}
	if len(rows) == 0 {
		return entity.CoverageRecord{}, false, nil
	}
	rec := entity.CoverageRecord{Symbol: symbol}
	if s := rows[0].String("earliest_date"); s != "" {
		if rec.EarliestDate, err = entity.ParseDate(s); err != nil {
			return entity.CoverageRecord{}, false, err
		}
	}
	if s := rows[0].String("last_updated"); s != "" {
		if rec.LastUpdated, err = entity.ParseDate(s); err != nil {
			return entity.CoverageRecord{}, false, err
		}
	}
	return rec, true, nil
}

func (r *coverageStore) SaveCoverage(ctx context.Context, rec entity.CoverageRecord) error {
	return r.store.Batch(ctx, []sqlstore.Statement{sqlstore.NewStatement(
		"INSERT INTO "+tableCoverage+" (symbol, earliest_date, last_updated) VALUES (?, ?, ?) "+
			"ON CONFLICT(symbol) DO UPDATE SET earliest_date = excluded.earliest_date, last_updated = excluded.last_updated",
		rec.Symbol, formatOptional(rec.EarliestDate), formatOptional(rec.LastUpdated),
	)})
}

func firstDate(rows []sqlstore.Row, col string) (time.Time, bool, error) {
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	s := rows[0].String(col)
	if s == "" {
		return time.Time{}, false, nil
	}
	d, err := entity.ParseDate(s)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

func formatOptional(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return entity.FormatDate(t)
}
