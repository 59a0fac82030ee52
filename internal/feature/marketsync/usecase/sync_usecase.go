package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// SyncUsecase は1回の同期サイクルを実行します。
// 解決 → 期間計算 → 並行取得 → ステージング → 反映 → 無効化 の順に処理し、
// 銘柄ごとの失敗は他の銘柄の処理を止めません。
type SyncUsecase struct {
	resolver    *TargetResolver
	coverage    *CoverageTracker
	fetcher     *Fetcher
	staging     *StagingWriter
	committer   *Committer
	invalidator *Invalidator
	cfg         Config
	now         func() time.Time
}

// NewSyncUsecase は新しい SyncUsecase を作成します。
func NewSyncUsecase(
	resolver *TargetResolver,
	coverage *CoverageTracker,
	fetcher *Fetcher,
	staging *StagingWriter,
	committer *Committer,
	invalidator *Invalidator,
	cfg Config,
) *SyncUsecase {
	return &SyncUsecase{
		resolver:    resolver,
		coverage:    coverage,
		fetcher:     fetcher,
		staging:     staging,
		committer:   committer,
		invalidator: invalidator,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run は mode に従って1サイクル同期します。対象が1件もない場合は ErrNoTargets を返します。
func (u *SyncUsecase) Run(ctx context.Context, mode entity.Mode) (entity.RunSummary, error) {
	summary := entity.RunSummary{RunID: uuid.NewString(), Mode: mode}
	log := slog.With("run_id", summary.RunID, "mode", mode)
	today := entity.DateOf(u.now(), u.cfg.location())
	log.Info("sync started", "today", entity.FormatDate(today))

	targets, err := u.resolver.Resolve(ctx)
	if err != nil {
		return summary, fmt.Errorf("resolve targets: %w", err)
	}
	if targets.Empty() {
		return summary, ErrNoTargets
	}

	reqs := u.plan(ctx, log, targets, mode, today, &summary)
	results := u.fetcher.Fetch(ctx, reqs)

	strategy := entity.StrategyUpsert
	if mode == entity.ModeFullRefresh {
		strategy = u.cfg.RefreshStrategy
		if strategy == "" || strategy == entity.StrategyUpsert {
			strategy = entity.StrategyReplace
		}
	}

	// 書き込みは取得フェーズの完了後に直列で行う
	var swapQueue []entity.SymbolData
	for _, res := range results {
		sym := res.Request.Symbol
		if res.Err != nil {
			summary.RecordFailure(sym, res.Err)
			continue
		}
		if len(res.Data.Prices) == 0 {
			log.Info("no new data", "symbol", sym)
			if err := u.coverage.Touch(ctx, sym, today); err != nil {
				log.Warn("coverage touch failed", "symbol", sym, "error", err)
			}
			summary.Skipped++
			continue
		}
		if err := u.staging.Stage(ctx, res.Data); err != nil {
			log.Error("staging failed; authoritative tables untouched", "symbol", sym, "error", err)
			summary.RecordFailure(sym, err)
			continue
		}
		if strategy == entity.StrategySwap {
			swapQueue = append(swapQueue, res.Data)
			continue
		}
		if err := u.committer.Commit(ctx, res.Data, strategy, today); err != nil {
			if errors.Is(err, ErrCommitFailed) {
				summary.RecordFailure(sym, err)
				continue
			}
			// 反映済みで CoverageRecord の更新だけが失敗した場合は変更ありとして扱う
			log.Warn("committed but coverage not recorded", "symbol", sym, "error", err)
		}
		summary.Succeeded++
		summary.Changed = append(summary.Changed, sym)
		log.Info("symbol synced", "symbol", sym, "prices", len(res.Data.Prices), "dividends", len(res.Data.Dividends))
	}

	if len(swapQueue) > 0 {
		u.swapAll(ctx, log, swapQueue, today, &summary)
	}

	if err := u.invalidator.Invalidate(ctx, summary.Changed, targets.UserIDs, mode == entity.ModeFullRefresh); err != nil {
		log.Warn("invalidation finished with errors", "error", err)
	}

	log.Info("sync finished",
		"planned", summary.Planned,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// plan は各銘柄の取得期間を計算し、取得が必要な要求だけを返します。
func (u *SyncUsecase) plan(ctx context.Context, log *slog.Logger, targets entity.Targets, mode entity.Mode, today time.Time, summary *entity.RunSummary) []entity.FetchRequest {
	reqs := make([]entity.FetchRequest, 0, len(targets.Symbols))
	for _, sym := range targets.Symbols {
		w, err := u.coverage.Plan(ctx, sym, targets.IsBenchmark(sym), mode, today)
		if err != nil {
			if errors.Is(err, ErrNoStartDate) {
				log.Warn("skipping symbol without a start date", "symbol", sym)
				summary.Skipped++
				continue
			}
			log.Error("coverage planning failed", "symbol", sym, "error", err)
			summary.RecordFailure(sym, err)
			continue
		}
		if w.Skip {
			log.Info("already current", "symbol", sym)
			if err := u.coverage.Touch(ctx, sym, today); err != nil {
				log.Warn("coverage touch failed", "symbol", sym, "error", err)
			}
			summary.Skipped++
			continue
		}
		reqs = append(reqs, entity.FetchRequest{Symbol: sym, IsFX: entity.IsFX(sym), Start: w.Start, End: w.End})
	}
	summary.Planned = len(reqs)
	return reqs
}

// swapAll はステージング済みの銘柄をテーブル単位で入れ替えます。
// 価格テーブルの入れ替えに失敗した銘柄は失敗として数え、配当テーブルも入れ替えません。
func (u *SyncUsecase) swapAll(ctx context.Context, log *slog.Logger, datas []entity.SymbolData, today time.Time, summary *entity.RunSummary) {
	byKind := map[entity.SeriesKind][]entity.SymbolData{}
	for _, d := range datas {
		kind := entity.PriceKind(d.Symbol)
		byKind[kind] = append(byKind[kind], d)
		if kind == entity.KindPrice {
			byKind[entity.KindDividend] = append(byKind[entity.KindDividend], d)
		}
	}

	failed := map[string]error{}
	// 価格の入れ替えに失敗した銘柄の配当は入れ替えない（価格と配当の世代を揃える）
	for _, kind := range []entity.SeriesKind{entity.KindPrice, entity.KindDividend, entity.KindFX} {
		var group []entity.SymbolData
		for _, d := range byKind[kind] {
			if _, ok := failed[d.Symbol]; !ok {
				group = append(group, d)
			}
		}
		if len(group) == 0 {
			continue
		}
		if err := u.committer.Swap(ctx, kind, group, today); err != nil {
			log.Error("table swap failed", "kind", kind, "error", err)
			if errors.Is(err, ErrSwapIncomplete) || errors.Is(err, ErrSwapVerification) || errors.Is(err, ErrCommitFailed) {
				for _, d := range group {
					failed[d.Symbol] = err
				}
			}
		}
	}

	for _, d := range datas {
		if err, ok := failed[d.Symbol]; ok {
			summary.RecordFailure(d.Symbol, err)
			continue
		}
		summary.Succeeded++
		summary.Changed = append(summary.Changed, d.Symbol)
	}
}
