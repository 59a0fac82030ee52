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

// IntradayUsecase は通常の日次同期とは別に、当日の最新価格を取得して保存します。
// 価格が1行も保存されていない銘柄には書き込みません。過去分の取得は日次同期が行います。
type IntradayUsecase struct {
	resolver    *TargetResolver
	coverage    *CoverageTracker
	fetcher     *Fetcher
	staging     *StagingWriter
	committer   *Committer
	invalidator *Invalidator
	cfg         Config
	now         func() time.Time
}

// NewIntradayUsecase は新しい IntradayUsecase を作成します。
func NewIntradayUsecase(resolver *TargetResolver, coverage *CoverageTracker, fetcher *Fetcher, staging *StagingWriter, committer *Committer, invalidator *Invalidator, cfg Config) *IntradayUsecase {
	return &IntradayUsecase{
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

// Run は為替以外の全対象銘柄の最新価格を取得し、市場の当日の価格だけをアップサートします。
func (u *IntradayUsecase) Run(ctx context.Context) (entity.RunSummary, error) {
	summary := entity.RunSummary{RunID: uuid.NewString(), Mode: entity.ModeIntraday}
	log := slog.With("run_id", summary.RunID, "mode", entity.ModeIntraday)
	today := entity.DateOf(u.now(), u.cfg.location())

	targets, err := u.resolver.Resolve(ctx)
	if err != nil {
		return summary, fmt.Errorf("resolve targets: %w", err)
	}
	if targets.Empty() {
		return summary, ErrNoTargets
	}
	var symbols []string
	for _, sym := range targets.Symbols {
		if !entity.IsFX(sym) {
			symbols = append(symbols, sym)
		}
	}
	summary.Planned = len(symbols)

	for _, sym := range symbols {
		has, err := u.coverage.HasHistory(ctx, sym)
		if err != nil {
			summary.RecordFailure(sym, err)
			continue
		}
		if !has {
			log.Info("no stored history; left to the daily sync", "symbol", sym)
			summary.Skipped++
			continue
		}

		q, err := u.fetcher.Latest(ctx, sym)
		if err != nil {
			if errors.Is(err, ErrStaleQuote) {
				log.Info("market closed or quote stale; skipping", "symbol", sym, "error", err)
				summary.Skipped++
				continue
			}
			summary.RecordFailure(sym, err)
			continue
		}

		day := entity.DateOf(q.Time, q.Time.Location())
		if day.After(today) {
			// 市場日付がこちらの今日より先の場合は保存しない
			log.Info("quote dated after local today; skipping", "symbol", sym, "date", entity.FormatDate(day))
			summary.Skipped++
			continue
		}
		data := entity.SymbolData{
			Symbol: sym,
			Prices: []entity.PricePoint{{Symbol: sym, Date: day, Price: q.Price}},
		}
		if err := u.staging.Stage(ctx, data); err != nil {
			summary.RecordFailure(sym, err)
			continue
		}
		if err := u.committer.CommitLatest(ctx, data, today); err != nil {
			summary.RecordFailure(sym, err)
			continue
		}
		summary.Succeeded++
		summary.Changed = append(summary.Changed, sym)
		log.Info("intraday price saved", "symbol", sym, "price", q.Price, "date", entity.FormatDate(day))
	}

	if err := u.invalidator.Invalidate(ctx, summary.Changed, targets.UserIDs, false); err != nil {
		log.Warn("invalidation finished with errors", "error", err)
	}
	return summary, nil
}
