package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// GroupRepository はグループ集計キャッシュの dirty フラグを操作します。
type GroupRepository interface {
	// MarkDirtyBySymbols は symbols の取引を含むグループを dirty にします。
	MarkDirtyBySymbols(ctx context.Context, symbols []string) error
	// MarkAllDirty は全グループを dirty にします。
	MarkAllDirty(ctx context.Context) error
}

// CacheInvalidator は読み取りキャッシュから銘柄のエントリを削除します。
type CacheInvalidator interface {
	InvalidateSymbols(ctx context.Context, symbols []string) error
}

// RecalcTrigger は外部の再計算サービスへの通知を抽象化します。
type RecalcTrigger interface {
	RecalculateAll(ctx context.Context, snapshot bool) error
	RecalculateUser(ctx context.Context, uid string, snapshot bool) error
}

// Invalidator はデータ変更後に依存キャッシュを無効化し、再計算を依頼します。
// ここでの失敗は同期結果を巻き戻しません。
type Invalidator struct {
	groups  GroupRepository
	cache   CacheInvalidator
	trigger RecalcTrigger
	cfg     Config
}

// NewInvalidator は新しい Invalidator を作成します。cache と trigger は nil を許容します。
func NewInvalidator(groups GroupRepository, cache CacheInvalidator, trigger RecalcTrigger, cfg Config) *Invalidator {
	return &Invalidator{groups: groups, cache: cache, trigger: trigger, cfg: cfg}
}

// Invalidate は changed が空でない場合のみ、グループキャッシュの無効化、読み取りキャッシュの削除、
// 再計算の依頼を順に行います。発生したエラーはまとめて返しますが、各ステップは最後まで実行します。
func (iv *Invalidator) Invalidate(ctx context.Context, changed, users []string, snapshot bool) error {
	if len(changed) == 0 {
		slog.Info("no authoritative writes; skipping invalidation")
		return nil
	}

	var errs []error
	if iv.groups != nil {
		var err error
		if anyFX(changed) {
			// 為替レートは全グループの評価に影響する
			err = iv.groups.MarkAllDirty(ctx)
		} else {
			err = iv.groups.MarkDirtyBySymbols(ctx, changed)
		}
		if err != nil {
			slog.Error("failed to mark groups dirty", "symbols", changed, "error", err)
			errs = append(errs, fmt.Errorf("mark groups dirty: %w", err))
		}
	}

	if iv.cache != nil {
		if err := iv.cache.InvalidateSymbols(ctx, changed); err != nil {
			slog.Warn("failed to invalidate read cache", "symbols", changed, "error", err)
			errs = append(errs, fmt.Errorf("invalidate cache: %w", err))
		}
	}

	if iv.trigger != nil {
		if err := iv.notify(ctx, users, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (iv *Invalidator) notify(ctx context.Context, users []string, snapshot bool) error {
	if !iv.cfg.RecalcPerUser {
		if err := iv.trigger.RecalculateAll(ctx, snapshot); err != nil {
			slog.Error("recalculation trigger failed", "error", err)
			return fmt.Errorf("recalculate all: %w", err)
		}
		slog.Info("recalculation triggered for all users", "snapshot", snapshot)
		return nil
	}

	if len(users) == 0 {
		slog.Info("no active users; skipping recalculation")
		return nil
	}
	var errs []error
	for _, uid := range users {
		if err := iv.trigger.RecalculateUser(ctx, uid, snapshot); err != nil {
			slog.Error("recalculation trigger failed", "uid", uid, "error", err)
			errs = append(errs, fmt.Errorf("recalculate %s: %w", uid, err))
		}
	}
	slog.Info("recalculation triggered", "users", len(users), "failed", len(errs), "snapshot", snapshot)
	return errors.Join(errs...)
}

func anyFX(symbols []string) bool {
	for _, s := range symbols {
		if entity.IsFX(s) {
			return true
		}
	}
	return false
}
