package adapters

import (
	"context"
	"fmt"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

type commitStore struct {
	store sqlstore.Store
}

var _ usecase.CommitRepository = (*commitStore)(nil)

func NewCommitRepository(store sqlstore.Store) *commitStore {
	return &commitStore{store: store}
}

// tablesFor は symbol の価格テーブルと、為替以外なら配当テーブルを返します。
func tablesFor(symbol string) []seriesTable {
	if entity.IsFX(symbol) {
		return []seriesTable{seriesTableFor(entity.KindFX)}
	}
	return []seriesTable{seriesTableFor(entity.KindPrice), seriesTableFor(entity.KindDividend)}
}

func (r *commitStore) MergeStaged(ctx context.Context, symbol string) error {
	var stmts []sqlstore.Statement
	for _, t := range tablesFor(symbol) {
		stmts = append(stmts, sqlstore.NewStatement(t.upsertFromStagingSQL(), symbol))
	}
	return r.store.Batch(ctx, stmts)
}

func (r *commitStore) ReplaceFromStaged(ctx context.Context, symbol string) error {
	var stmts []sqlstore.Statement
	for _, t := range tablesFor(symbol) {
		stmts = append(stmts,
			sqlstore.NewStatement("DELETE FROM "+t.live+" WHERE symbol = ?", symbol),
			sqlstore.NewStatement(t.insertFromStagingSQL(), symbol),
		)
	}
	return r.store.Batch(ctx, stmts)
}

func (r *commitStore) BuildShadow(ctx context.Context, kind entity.SeriesKind, shadow string, symbols []string) error {
	if err := checkIdent(shadow); err != nil {
		return err
	}
	t := seriesTableFor(kind)
	untouched, untouchedParams := symbolFilter(symbols, true)
	refreshed, refreshedParams := symbolFilter(symbols, false)
	return r.store.Batch(ctx, []sqlstore.Statement{
		sqlstore.NewStatement(createSeriesTableSQL(shadow, t.value)),
		sqlstore.NewStatement(fmt.Sprintf(
			"INSERT INTO %[1]s (symbol, date, %[3]s) SELECT symbol, date, %[3]s FROM %[2]s%[4]s",
			shadow, t.live, t.value, untouched), untouchedParams...),
		sqlstore.NewStatement(fmt.Sprintf(
			"INSERT INTO %[1]s (symbol, date, %[3]s) SELECT symbol, date, %[3]s FROM %[2]s%[4]s",
			shadow, t.staging, t.value, refreshed), refreshedParams...),
	})
}

func (r *commitStore) StagedCounts(ctx context.Context, kind entity.SeriesKind, symbols []string) (map[string]int64, error) {
	counts, _, err := r.counts(ctx, seriesTableFor(kind).staging, symbols, false)
	return counts, err
}

func (r *commitStore) TableCounts(ctx context.Context, table string, symbols []string) (map[string]int64, int64, error) {
	if err := checkIdent(table); err != nil {
		return nil, 0, err
	}
	return r.counts(ctx, table, symbols, true)
}

func (r *commitStore) LiveCountExcluding(ctx context.Context, kind entity.SeriesKind, symbols []string) (int64, error) {
	where, params := symbolFilter(symbols, true)
	rows, err := r.store.Query(ctx, "SELECT COUNT(*) AS n FROM "+seriesTableFor(kind).live+where, params...)
	if err != nil {
		return 0, err
	}
	return countOf(rows)
}

// PromoteShadow は2つのリネームを1つのバッチで実行します。
func (r *commitStore) PromoteShadow(ctx context.Context, kind entity.SeriesKind, shadow, backup string) error {
	for _, name := range []string{shadow, backup} {
		if err := checkIdent(name); err != nil {
			return err
		}
	}
	live := seriesTableFor(kind).live
	return r.store.Batch(ctx, []sqlstore.Statement{
		sqlstore.NewStatement(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", live, backup)),
		sqlstore.NewStatement(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadow, live)),
	})
}

func (r *commitStore) DropTable(ctx context.Context, table string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	return r.store.Batch(ctx, []sqlstore.Statement{sqlstore.NewStatement("DROP TABLE IF EXISTS " + table)})
}

func (r *commitStore) TableName(kind entity.SeriesKind) string {
	return seriesTableFor(kind).live
}

func (r *commitStore) counts(ctx context.Context, table string, symbols []string, withTotal bool) (map[string]int64, int64, error) {
	out := make(map[string]int64, len(symbols))
	if len(symbols) > 0 {
		where, params := symbolFilter(symbols, false)
		rows, err := r.store.Query(ctx, "SELECT symbol, COUNT(*) AS n FROM "+table+where+" GROUP BY symbol", params...)
		if err != nil {
			return nil, 0, err
		}
		for _, row := range rows {
			n, err := row.Int("n")
			if err != nil {
				return nil, 0, err
			}
			out[row.String("symbol")] = n
		}
	}
	if !withTotal {
		return out, 0, nil
	}
	rows, err := r.store.Query(ctx, "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		return nil, 0, err
	}
	total, err := countOf(rows)
	return out, total, err
}

func countOf(rows []sqlstore.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int("n")
}

// symbolFilter は symbols を選ぶ WHERE 句を返します。exclude の場合はそれ以外の銘柄を選びます。
// 空の集合は何も選ばず、exclude の場合は全件を選びます。
func symbolFilter(symbols []string, exclude bool) (string, []any) {
	if len(symbols) == 0 {
		if exclude {
			return "", nil
		}
		return " WHERE 1 = 0", nil
	}
	params := make([]any, len(symbols))
	for i, v := range symbols {
		params[i] = v
	}
	op := "IN"
	if exclude {
		op = "NOT IN"
	}
	return fmt.Sprintf(" WHERE symbol %s (%s)", op, sqlstore.Placeholders(len(symbols))), params
}
