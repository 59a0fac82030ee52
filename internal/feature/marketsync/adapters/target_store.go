package adapters

import (
	"context"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

type targetStore struct {
	store sqlstore.Store
}

var _ usecase.TargetRepository = (*targetStore)(nil)

func NewTargetRepository(store sqlstore.Store) *targetStore {
	return &targetStore{store: store}
}

func (r *targetStore) ListHoldings(ctx context.Context) ([]entity.Holding, error) {
	rows, err := r.store.Query(ctx, "SELECT DISTINCT symbol, currency FROM holdings")
	if err != nil {
		return nil, err
	}
	out := make([]entity.Holding, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.Holding{Symbol: row.String("symbol"), Currency: row.String("currency")})
	}
	return out, nil
}

func (r *targetStore) ListBenchmarkSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.store.Query(ctx, "SELECT DISTINCT value AS symbol FROM controls WHERE key = ?", "benchmarkSymbol")
	if err != nil {
		return nil, err
	}
	return column(rows, "symbol"), nil
}

func (r *targetStore) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.store.Query(ctx, "SELECT DISTINCT uid FROM transactions")
	if err != nil {
		return nil, err
	}
	return column(rows, "uid"), nil
}

func column(rows []sqlstore.Row, col string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if v := row.String(col); v != "" {
			out = append(out, v)
		}
	}
	return out
}
