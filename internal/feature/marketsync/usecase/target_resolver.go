package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// TargetRepository は同期対象の銘柄とユーザーを読み出すリポジトリのインターフェイスです。
type TargetRepository interface {
	ListHoldings(ctx context.Context) ([]entity.Holding, error)
	ListBenchmarkSymbols(ctx context.Context) ([]string, error)
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// TargetResolver は保有銘柄・為替ペア・ベンチマーク・アクティブユーザーを収集します。
// 読み取りのみで副作用はありません。
type TargetResolver struct {
	repo  TargetRepository
	fxMap map[string]string
}

// NewTargetResolver は新しい TargetResolver を作成します。
func NewTargetResolver(repo TargetRepository, cfg Config) *TargetResolver {
	return &TargetResolver{repo: repo, fxMap: FXSymbolMap(cfg.LocalCurrency, cfg.FXCurrencies)}
}

// FXSymbolMap は通貨コードから為替ペアへの対応表を作ります（例: USD -> "USD/TWD"）。
func FXSymbolMap(local string, currencies []string) map[string]string {
	local = strings.ToUpper(strings.TrimSpace(local))
	out := make(map[string]string, len(currencies))
	for _, c := range currencies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || c == local {
			continue
		}
		out[c] = c + entity.FXMarker + local
	}
	return out
}

// Resolve は同期対象を返します。保有銘柄が空の場合は空の Targets を返します。
func (r *TargetResolver) Resolve(ctx context.Context) (entity.Targets, error) {
	holdings, err := r.repo.ListHoldings(ctx)
	if err != nil {
		return entity.Targets{}, fmt.Errorf("list holdings: %w", err)
	}

	symbols := map[string]struct{}{}
	for _, h := range holdings {
		sym := entity.NormalizeSymbol(h.Symbol)
		if sym == "" {
			continue
		}
		symbols[sym] = struct{}{}

		cur := strings.ToUpper(strings.TrimSpace(h.Currency))
		if fx, ok := r.fxMap[cur]; ok {
			symbols[fx] = struct{}{}
		}
	}
	if len(symbols) == 0 {
		slog.Info("no holdings found; nothing to sync")
		return entity.Targets{Benchmarks: map[string]struct{}{}}, nil
	}

	benchRows, err := r.repo.ListBenchmarkSymbols(ctx)
	if err != nil {
		return entity.Targets{}, fmt.Errorf("list benchmarks: %w", err)
	}
	benchmarks := map[string]struct{}{}
	for _, b := range benchRows {
		sym := entity.NormalizeSymbol(b)
		if sym == "" {
			continue
		}
		benchmarks[sym] = struct{}{}
		symbols[sym] = struct{}{}
	}

	uids, err := r.repo.ListActiveUserIDs(ctx)
	if err != nil {
		return entity.Targets{}, fmt.Errorf("list active users: %w", err)
	}
	userSet := map[string]struct{}{}
	for _, u := range uids {
		if u = strings.TrimSpace(u); u != "" {
			userSet[u] = struct{}{}
		}
	}

	targets := entity.Targets{
		Symbols:    entity.SortedKeys(symbols),
		Benchmarks: benchmarks,
		UserIDs:    entity.SortedKeys(userSet),
	}
	slog.Info("resolved sync targets",
		"symbols", len(targets.Symbols),
		"benchmarks", len(benchmarks),
		"users", len(targets.UserIDs),
	)
	return targets, nil
}

// sortedCopy は呼び出し元のスライスを変更せずに昇順に並べた複製を返します。
func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
