package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// CommitRepository はステージングから正式テーブルへの反映を行うリポジトリのインターフェイスです。
// 各メソッドは1つのバッチとして実行され、途中状態が観測されないことを前提とします。
type CommitRepository interface {
	// MergeStaged はステージング行を (symbol, date) でアップサートします。
	MergeStaged(ctx context.Context, symbol string) error
	// ReplaceFromStaged は銘柄の正式行を削除し、ステージング行で置き換えます。
	ReplaceFromStaged(ctx context.Context, symbol string) error

	// BuildShadow は変更しない銘柄の正式行と symbols のステージング行からシャドウテーブルを作ります。
	BuildShadow(ctx context.Context, kind entity.SeriesKind, shadow string, symbols []string) error
	// StagedCounts は symbols のステージング行数を返します。
	StagedCounts(ctx context.Context, kind entity.SeriesKind, symbols []string) (map[string]int64, error)
	// TableCounts は table の symbols ごとの行数と総行数を返します。
	TableCounts(ctx context.Context, table string, symbols []string) (map[string]int64, int64, error)
	// LiveCountExcluding は symbols 以外の正式行数を返します。
	LiveCountExcluding(ctx context.Context, kind entity.SeriesKind, symbols []string) (int64, error)
	// PromoteShadow は正式テーブルを backup に、shadow を正式テーブルにリネームします。
	PromoteShadow(ctx context.Context, kind entity.SeriesKind, shadow, backup string) error
	DropTable(ctx context.Context, table string) error
	TableName(kind entity.SeriesKind) string
}

// Committer はステージング済みの行を正式テーブルへ反映し、成功時に CoverageRecord を更新します。
type Committer struct {
	repo     CommitRepository
	coverage *CoverageTracker
}

// NewCommitter は新しい Committer を作成します。
func NewCommitter(repo CommitRepository, coverage *CoverageTracker) *Committer {
	return &Committer{repo: repo, coverage: coverage}
}

// Commit は data.Symbol のステージング行を strategy で正式テーブルへ反映します。
// 失敗した場合は正式テーブルも CoverageRecord も変更しません。
func (c *Committer) Commit(ctx context.Context, data entity.SymbolData, strategy entity.Strategy, today time.Time) error {
	var err error
	switch strategy {
	case entity.StrategyReplace:
		err = c.repo.ReplaceFromStaged(ctx, data.Symbol)
	case entity.StrategyUpsert, "":
		err = c.repo.MergeStaged(ctx, data.Symbol)
	default:
		return fmt.Errorf("%s: unsupported per-symbol strategy %q", data.Symbol, strategy)
	}
	if err != nil {
		slog.Error("atomic commit failed; manual inspection required", "symbol", data.Symbol, "strategy", strategy, "error", err)
		return fmt.Errorf("%s: %w: %w", data.Symbol, ErrCommitFailed, err)
	}
	return c.record(ctx, data, today)
}

// CommitLatest は当日の暫定価格をアップサートします。
// 履歴の範囲は変わらないため earliest_date は更新せず、last_updated のみ進めます。
func (c *Committer) CommitLatest(ctx context.Context, data entity.SymbolData, today time.Time) error {
	if err := c.repo.MergeStaged(ctx, data.Symbol); err != nil {
		slog.Error("atomic commit failed; manual inspection required", "symbol", data.Symbol, "strategy", entity.StrategyUpsert, "error", err)
		return fmt.Errorf("%s: %w: %w", data.Symbol, ErrCommitFailed, err)
	}
	if c.coverage == nil {
		return nil
	}
	if err := c.coverage.Touch(ctx, data.Symbol, today); err != nil {
		slog.Warn("coverage update failed", "symbol", data.Symbol, "error", err)
	}
	return nil
}

// Swap はテーブル単位で data をシャドウテーブル経由で入れ替えます。
//
// 手順: シャドウ作成 → 行数検証 → 正式を backup に、シャドウを正式にリネーム → backup 削除。
// リネーム前の失敗では正式テーブルは変更されません。リネーム以降の失敗はロールバックできない場合があるため
// ErrSwapIncomplete を返し、運用者による確認が必要です（既知の制約）。
func (c *Committer) Swap(ctx context.Context, kind entity.SeriesKind, datas []entity.SymbolData, today time.Time) error {
	if len(datas) == 0 {
		return nil
	}
	symbols := make([]string, len(datas))
	for i, d := range datas {
		symbols[i] = d.Symbol
	}
	symbols = sortedCopy(symbols)

	live := c.repo.TableName(kind)
	suffix := time.Now().UTC().Format("20060102150405")
	shadow := live + "_shadow_" + suffix
	backup := live + "_old_" + suffix
	log := slog.With("table", live, "shadow", shadow)

	if err := c.repo.BuildShadow(ctx, kind, shadow, symbols); err != nil {
		_ = c.repo.DropTable(ctx, shadow)
		log.Error("build shadow table failed", "error", err)
		return fmt.Errorf("%s: %w: %w", live, ErrCommitFailed, err)
	}
	if err := c.verifyShadow(ctx, kind, shadow, symbols); err != nil {
		_ = c.repo.DropTable(ctx, shadow)
		log.Error("shadow verification failed; live table untouched", "error", err)
		return err
	}
	if err := c.repo.PromoteShadow(ctx, kind, shadow, backup); err != nil {
		log.Error("table swap failed during rename; operator must inspect live, shadow and backup tables", "backup", backup, "error", err)
		return fmt.Errorf("%s: %w: %w", live, ErrSwapIncomplete, err)
	}
	if err := c.repo.DropTable(ctx, backup); err != nil {
		log.Error("backup table not dropped; operator must drop it", "backup", backup, "error", err)
		return fmt.Errorf("%s: %w: drop %s: %w", live, ErrSwapIncomplete, backup, err)
	}
	log.Info("table swapped", "symbols", len(symbols))

	var errs []error
	for _, d := range datas {
		if kind == entity.KindDividend {
			continue
		}
		if err := c.record(ctx, d, today); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Committer) verifyShadow(ctx context.Context, kind entity.SeriesKind, shadow string, symbols []string) error {
	staged, err := c.repo.StagedCounts(ctx, kind, symbols)
	if err != nil {
		return fmt.Errorf("%w: staged counts: %w", ErrSwapVerification, err)
	}
	got, total, err := c.repo.TableCounts(ctx, shadow, symbols)
	if err != nil {
		return fmt.Errorf("%w: shadow counts: %w", ErrSwapVerification, err)
	}
	untouched, err := c.repo.LiveCountExcluding(ctx, kind, symbols)
	if err != nil {
		return fmt.Errorf("%w: live counts: %w", ErrSwapVerification, err)
	}

	var stagedTotal int64
	for _, s := range symbols {
		if got[s] != staged[s] {
			return fmt.Errorf("%w: %s has %d rows in shadow, %d staged", ErrSwapVerification, s, got[s], staged[s])
		}
		stagedTotal += staged[s]
	}
	if total != untouched+stagedTotal {
		return fmt.Errorf("%w: shadow total %d, want %d", ErrSwapVerification, total, untouched+stagedTotal)
	}
	return nil
}

func (c *Committer) record(ctx context.Context, data entity.SymbolData, today time.Time) error {
	if c.coverage == nil {
		return nil
	}
	if err := c.coverage.Record(ctx, data.Symbol, data.Earliest(), today); err != nil {
		slog.Warn("coverage update failed", "symbol", data.Symbol, "error", err)
		return err
	}
	return nil
}
