package adapters

import (
	"context"

	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/shared/sqlstore"
)

type groupStore struct {
	store sqlstore.Store
}

var _ usecase.GroupRepository = (*groupStore)(nil)

func NewGroupRepository(store sqlstore.Store) *groupStore {
	return &groupStore{store: store}
}

// MarkDirtyBySymbols は symbols の取引を1件でも含むグループを dirty にします。
func (r *groupStore) MarkDirtyBySymbols(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	where, params := symbolFilter(symbols, false)
	return r.store.Batch(ctx, []sqlstore.Statement{sqlstore.NewStatement(
		"UPDATE groups SET is_dirty = 1 WHERE id IN ("+
			"SELECT gti.group_id FROM group_transaction_inclusions gti "+
			"JOIN (SELECT id, uid FROM transactions"+where+") t "+
			"ON t.id = gti.transaction_id AND t.uid = gti.uid)",
		params...,
	)})
}

func (r *groupStore) MarkAllDirty(ctx context.Context) error {
	return r.store.Batch(ctx, []sqlstore.Statement{sqlstore.NewStatement("UPDATE groups SET is_dirty = 1")})
}
