package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/shared/ratelimiter"
	"market_sync/internal/shared/retry"
)

// MarketRepository は外部のマーケットデータ提供元を抽象化します。
type MarketRepository interface {
	// GetDailySeries は symbols の日足を [start, end] で取得します。
	// レスポンスの形は要求した銘柄数によって変わります。
	GetDailySeries(ctx context.Context, symbols []string, start, end time.Time) (entity.SeriesResponse, error)
	GetDividends(ctx context.Context, symbol string, start, end time.Time) ([]entity.DividendEvent, error)
	GetLatestQuote(ctx context.Context, symbol string) (entity.Quote, error)
}

// RetryClassifier は外部エラーが再試行に値するかを判定します。
type RetryClassifier interface {
	Retryable() bool
}

// Fetcher は銘柄をバッチにまとめて外部APIから取得します。
// バッチは並行に取得され、結果は要求と対にして返されます。
type Fetcher struct {
	market      MarketRepository
	rateLimiter ratelimiter.RateLimiterInterface
	cfg         Config
	now         func() time.Time
}

// NewFetcher は新しい Fetcher を作成します。
func NewFetcher(market MarketRepository, rateLimiter ratelimiter.RateLimiterInterface, cfg Config) *Fetcher {
	return &Fetcher{market: market, rateLimiter: rateLimiter, cfg: cfg, now: time.Now}
}

// Fetch は reqs の各銘柄を取得し、要求と同じ順序で結果を返します。
// 1つのバッチの失敗は他のバッチに影響しません。
func (f *Fetcher) Fetch(ctx context.Context, reqs []entity.FetchRequest) []entity.FetchResult {
	batches := f.batches(reqs)
	out := make([][]entity.FetchResult, len(batches))

	var g errgroup.Group
	g.SetLimit(f.cfg.maxWorkers())
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			out[i] = f.fetchBatch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	bySymbol := make(map[string]entity.FetchResult, len(reqs))
	for _, rs := range out {
		for _, r := range rs {
			bySymbol[r.Request.Symbol] = r
		}
	}
	results := make([]entity.FetchResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, bySymbol[req.Symbol])
	}
	return results
}

// batches は為替と通常銘柄を混ぜずに BatchSize ごとに分割します。
func (f *Fetcher) batches(reqs []entity.FetchRequest) [][]entity.FetchRequest {
	var fx, plain []entity.FetchRequest
	for _, r := range reqs {
		if r.IsFX {
			fx = append(fx, r)
		} else {
			plain = append(plain, r)
		}
	}
	size := f.cfg.batchSize()
	var out [][]entity.FetchRequest
	for _, group := range [][]entity.FetchRequest{plain, fx} {
		for len(group) > 0 {
			n := min(size, len(group))
			out = append(out, group[:n])
			group = group[n:]
		}
	}
	return out
}

func (f *Fetcher) fetchBatch(ctx context.Context, batch []entity.FetchRequest) []entity.FetchResult {
	symbols := make([]string, len(batch))
	start, end := batch[0].Start, batch[0].End
	for i, r := range batch {
		symbols[i] = r.Symbol
		if r.Start.Before(start) {
			start = r.Start
		}
		if r.End.After(end) {
			end = r.End
		}
	}

	var resp entity.SeriesResponse
	err := f.call(ctx, "daily series", func() error {
		var err error
		resp, err = f.market.GetDailySeries(ctx, symbols, start, end)
		return err
	})
	if err != nil {
		slog.Error("batch fetch failed", "symbols", symbols, "error", err)
		return failAll(batch, err)
	}

	tables, err := attribute(batch, resp)
	if err != nil {
		slog.Error("discarding batch", "symbols", symbols, "error", err)
		return failAll(batch, err)
	}

	today := entity.DateOf(f.now(), f.cfg.location())
	results := make([]entity.FetchResult, 0, len(batch))
	for _, req := range batch {
		res := entity.FetchResult{Request: req}
		table, ok := tables[req.Symbol]
		switch {
		case !ok:
			res.Err = fmt.Errorf("%s: %w", req.Symbol, ErrSymbolMissing)
		case table.Err != nil:
			res.Err = table.Err
		default:
			res.Data, res.Err = f.symbolData(ctx, req, table.Bars, today)
		}
		if res.Err != nil {
			slog.Warn("symbol fetch failed", "symbol", req.Symbol, "error", res.Err)
		}
		results = append(results, res)
	}
	return results
}

// attribute はレスポンスの形に応じて銘柄ごとの表を取り出します。
// 複数銘柄の要求に単一銘柄の形が返ってきた場合は行を帰属できないため、バッチ全体を破棄します。
func attribute(batch []entity.FetchRequest, resp entity.SeriesResponse) (map[string]entity.SymbolTable, error) {
	switch r := resp.(type) {
	case entity.SingleSymbolTable:
		if len(batch) != 1 {
			return nil, fmt.Errorf("%w: single-symbol shape for %d requested symbols", ErrAmbiguousResponse, len(batch))
		}
		if r.Symbol != "" && entity.NormalizeSymbol(r.Symbol) != batch[0].Symbol {
			return nil, fmt.Errorf("%w: response for %q, requested %q", ErrAmbiguousResponse, r.Symbol, batch[0].Symbol)
		}
		return map[string]entity.SymbolTable{batch[0].Symbol: r.Table}, nil
	case entity.MultiSymbolTable:
		out := make(map[string]entity.SymbolTable, len(r.Tables))
		for sym, t := range r.Tables {
			out[entity.NormalizeSymbol(sym)] = t
		}
		return out, nil
	case entity.Ambiguous:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousResponse, r.Reason)
	default:
		return nil, fmt.Errorf("%w: unexpected response type %T", ErrAmbiguousResponse, resp)
	}
}

// symbolData は終値のない行を捨て、銘柄自身の期間と今日までに絞り込みます。
func (f *Fetcher) symbolData(ctx context.Context, req entity.FetchRequest, bars []entity.Bar, today time.Time) (entity.SymbolData, error) {
	end := req.End
	if end.After(today) {
		end = today
	}
	inWindow := func(d time.Time) bool {
		return !d.Before(req.Start) && !d.After(end)
	}

	data := entity.SymbolData{Symbol: req.Symbol, IsFX: req.IsFX}
	seen := map[time.Time]struct{}{}
	for _, b := range bars {
		if !b.HasClose() || !inWindow(b.Date) {
			continue
		}
		if _, dup := seen[b.Date]; dup {
			continue
		}
		seen[b.Date] = struct{}{}
		data.Prices = append(data.Prices, entity.PricePoint{Symbol: req.Symbol, Date: b.Date, Price: b.Close})
	}
	sort.Slice(data.Prices, func(i, j int) bool { return data.Prices[i].Date.Before(data.Prices[j].Date) })

	if req.IsFX {
		return data, nil
	}

	var divs []entity.DividendEvent
	err := f.call(ctx, "dividends", func() error {
		var err error
		divs, err = f.market.GetDividends(ctx, req.Symbol, req.Start, end)
		return err
	})
	if err != nil {
		return entity.SymbolData{}, fmt.Errorf("dividends %s: %w", req.Symbol, err)
	}
	for _, d := range divs {
		if d.Amount <= 0 || !inWindow(d.Date) {
			continue
		}
		d.Symbol = req.Symbol
		data.Dividends = append(data.Dividends, d)
	}
	sort.Slice(data.Dividends, func(i, j int) bool { return data.Dividends[i].Date.Before(data.Dividends[j].Date) })
	return data, nil
}

// Latest は symbol の最新のイントラデイ価格を返します。
// 取引所のタイムゾーンで当日の価格でない場合は ErrStaleQuote を返します。
func (f *Fetcher) Latest(ctx context.Context, symbol string) (entity.Quote, error) {
	var q entity.Quote
	err := f.call(ctx, "latest quote", func() error {
		var err error
		q, err = f.market.GetLatestQuote(ctx, symbol)
		return err
	})
	if err != nil {
		return entity.Quote{}, err
	}
	loc := q.Time.Location()
	if !entity.DateOf(q.Time, loc).Equal(entity.DateOf(f.now(), loc)) {
		return entity.Quote{}, fmt.Errorf("%s quote at %s: %w", symbol, q.Time.Format(time.RFC3339), ErrStaleQuote)
	}
	return q, nil
}

// call はレートリミットを守りつつリトライポリシーで op を実行します。
func (f *Fetcher) call(ctx context.Context, what string, op func() error) error {
	return f.cfg.Retry.Do(ctx, what, func() error {
		if f.rateLimiter != nil {
			if err := f.rateLimiter.WaitIfNeeded(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAmbiguousResponse) || ctx.Err() != nil {
			return retry.Permanent(err)
		}
		var rc RetryClassifier
		if errors.As(err, &rc) && !rc.Retryable() {
			return retry.Permanent(err)
		}
		return err
	})
}

func failAll(batch []entity.FetchRequest, err error) []entity.FetchResult {
	out := make([]entity.FetchResult, len(batch))
	for i, r := range batch {
		out[i] = entity.FetchResult{Request: r, Err: err}
	}
	return out
}
