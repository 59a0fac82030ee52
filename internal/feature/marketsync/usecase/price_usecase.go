package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// PriceRepository は保存済みの価格系列を読み出すリポジトリのインターフェイスです。
type PriceRepository interface {
	ListPrices(ctx context.Context, symbol string, from, to time.Time) ([]entity.PricePoint, error)
}

const (
	// MaxLiveSymbols は1回のライブ価格要求で受け付ける銘柄数の上限です。
	MaxLiveSymbols = 50
)

// ErrInvalidSymbols は銘柄の指定が不正であることを示します。
var ErrInvalidSymbols = errors.New("invalid symbols")

// PriceUsecase は読み取りAPI向けに価格・カバレッジ・ライブ価格を提供します。
type PriceUsecase struct {
	prices   PriceRepository
	coverage *CoverageTracker
	market   MarketRepository
}

// NewPriceUsecase は新しい PriceUsecase を作成します。
func NewPriceUsecase(prices PriceRepository, coverage *CoverageTracker, market MarketRepository) *PriceUsecase {
	return &PriceUsecase{prices: prices, coverage: coverage, market: market}
}

// Prices は symbol の [from, to] の価格を日付昇順で返します。ゼロ値の日付は無制限を意味します。
func (u *PriceUsecase) Prices(ctx context.Context, symbol string, from, to time.Time) ([]entity.PricePoint, error) {
	symbol = entity.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbols
	}
	return u.prices.ListPrices(ctx, symbol, from, to)
}

// Coverage は symbol の CoverageRecord を返します。
func (u *PriceUsecase) Coverage(ctx context.Context, symbol string) (entity.CoverageRecord, error) {
	return u.coverage.Find(ctx, entity.NormalizeSymbol(symbol))
}

// LivePrices はカンマ区切りの銘柄の最新価格を返します。
// 一部の銘柄の失敗は結果から除外し、すべて失敗した場合のみエラーを返します。
func (u *PriceUsecase) LivePrices(ctx context.Context, csv string) (map[string]entity.Quote, error) {
	symbols := ParseSymbolList(csv)
	if len(symbols) == 0 || len(symbols) > MaxLiveSymbols {
		return nil, ErrInvalidSymbols
	}

	out := make(map[string]entity.Quote, len(symbols))
	var lastErr error
	for _, s := range symbols {
		q, err := u.market.GetLatestQuote(ctx, s)
		if err != nil {
			slog.Warn("live quote failed", "symbol", s, "error", err)
			lastErr = err
			continue
		}
		out[s] = q
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("live prices: %w", lastErr)
	}
	return out, nil
}

// ParseSymbolList はカンマ区切りの銘柄を正規化し、重複を除いて返します。
func ParseSymbolList(csv string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		s := entity.NormalizeSymbol(part)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
