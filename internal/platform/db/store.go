package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"market_sync/internal/shared/sqlstore"
)

// GormStore implements sqlstore.Store over a gorm connection.
// Each Batch runs inside one transaction.
type GormStore struct {
	db *gorm.DB
}

var _ sqlstore.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Query(ctx context.Context, sql string, params ...any) ([]sqlstore.Row, error) {
	var rows []map[string]any
	if err := s.db.WithContext(ctx).Raw(sql, params...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	// 集計列 (MAX, COUNT など) は *interface{} で返るため値を取り出す
	out := make([]sqlstore.Row, len(rows))
	for i, r := range rows {
		row := make(sqlstore.Row, len(r))
		for k, v := range r {
			row[k] = sqlstore.Deref(v)
		}
		out[i] = row
	}
	return out, nil
}

func (s *GormStore) Batch(ctx context.Context, stmts []sqlstore.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, st := range stmts {
			if err := tx.Exec(st.SQL, st.Params...).Error; err != nil {
				return fmt.Errorf("batch statement %d: %w", i, err)
			}
		}
		return nil
	})
}
