package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// CoverageRepository は保存済みデータの範囲と取引履歴を読み書きするリポジトリのインターフェイスです。
type CoverageRepository interface {
	// LatestPriceDate は銘柄の最新の保存日を返します。ok=false は保存データなしを示します。
	LatestPriceDate(ctx context.Context, symbol string) (latest time.Time, ok bool, err error)
	FirstTransactionDate(ctx context.Context, symbol string) (time.Time, bool, error)
	GlobalFirstTransactionDate(ctx context.Context) (time.Time, bool, error)
	ListTransactions(ctx context.Context, symbol string) ([]entity.TransactionLeg, error)
	FindCoverage(ctx context.Context, symbol string) (entity.CoverageRecord, bool, error)
	SaveCoverage(ctx context.Context, rec entity.CoverageRecord) error
}

// CoverageTracker は銘柄ごとの取得期間を決定し、CoverageRecord の更新を一手に担います。
type CoverageTracker struct {
	repo CoverageRepository
	cfg  Config
}

// NewCoverageTracker は新しい CoverageTracker を作成します。
func NewCoverageTracker(repo CoverageRepository, cfg Config) *CoverageTracker {
	return &CoverageTracker{repo: repo, cfg: cfg}
}

// Plan は symbol の取得期間を計算します。
// 開始日が today より後、または終了日より後の場合は Skip=true を返します。
func (t *CoverageTracker) Plan(ctx context.Context, symbol string, benchmark bool, mode entity.Mode, today time.Time) (entity.FetchWindow, error) {
	special := entity.IsFX(symbol) || benchmark
	if mode == entity.ModeFullRefresh {
		return t.planRefresh(ctx, symbol, special, today)
	}
	return t.planIncremental(ctx, symbol, special, today)
}

func (t *CoverageTracker) planIncremental(ctx context.Context, symbol string, special bool, today time.Time) (entity.FetchWindow, error) {
	latest, ok, err := t.repo.LatestPriceDate(ctx, symbol)
	if err != nil {
		return entity.FetchWindow{}, fmt.Errorf("latest price date: %w", err)
	}

	var start time.Time
	if ok {
		start = entity.NextDay(latest)
		// 当日分が既にある場合、設定により当日を取り直す（場中の暫定終値を補正するため）
		if latest.Equal(today) && t.cfg.RefetchToday {
			start = today
		}
	} else {
		start, err = t.firstNeeded(ctx, symbol, special)
		if err != nil {
			return entity.FetchWindow{}, err
		}
	}
	return window(symbol, start, today), nil
}

func (t *CoverageTracker) planRefresh(ctx context.Context, symbol string, special bool, today time.Time) (entity.FetchWindow, error) {
	if special {
		// 為替とベンチマークは記録済みの最古日から今日まで
		cov, ok, err := t.repo.FindCoverage(ctx, symbol)
		if err != nil {
			return entity.FetchWindow{}, fmt.Errorf("find coverage: %w", err)
		}
		if ok && !cov.EarliestDate.IsZero() {
			return window(symbol, cov.EarliestDate, today), nil
		}
		start, err := t.firstNeeded(ctx, symbol, true)
		if err != nil {
			return entity.FetchWindow{}, err
		}
		return window(symbol, start, today), nil
	}

	start, err := t.firstNeeded(ctx, symbol, false)
	if err != nil {
		return entity.FetchWindow{}, err
	}
	end := today

	legs, err := t.repo.ListTransactions(ctx, symbol)
	if err != nil {
		return entity.FetchWindow{}, fmt.Errorf("list transactions: %w", err)
	}
	if len(legs) > 0 {
		net, last := NetPosition(legs)
		if net.LessThanOrEqual(decimal.NewFromFloat(t.cfg.DivestedEpsilon)) && last.Before(end) {
			// 売却済みの銘柄は最後の取引日より後のデータを取得しない
			end = last
		}
	}
	return window(symbol, start, end), nil
}

// firstNeeded は保存データがない銘柄の開始日を返します。
// 為替・ベンチマークは全ユーザーの最古取引日、通常銘柄はその銘柄の初回取引日です。
func (t *CoverageTracker) firstNeeded(ctx context.Context, symbol string, special bool) (time.Time, error) {
	var (
		first time.Time
		ok    bool
		err   error
	)
	if special {
		first, ok, err = t.repo.GlobalFirstTransactionDate(ctx)
	} else {
		first, ok, err = t.repo.FirstTransactionDate(ctx, symbol)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("first transaction date: %w", err)
	}
	if ok {
		return first, nil
	}
	if t.cfg.EpochDefault.IsZero() {
		return time.Time{}, fmt.Errorf("%s: %w", symbol, ErrNoStartDate)
	}
	slog.Warn("no transaction reference; using epoch default", "symbol", symbol, "start", entity.FormatDate(t.cfg.EpochDefault))
	return t.cfg.EpochDefault, nil
}

func window(symbol string, start, end time.Time) entity.FetchWindow {
	return entity.FetchWindow{
		Symbol: symbol,
		Start:  start,
		End:    end,
		Skip:   start.After(end),
	}
}

// NetPosition は取引の符号付き数量の合計と最後の取引日を返します。
// 買いは加算、売りは減算し、その他の種別は数量に影響しません。
func NetPosition(legs []entity.TransactionLeg) (decimal.Decimal, time.Time) {
	net := decimal.Zero
	var last time.Time
	for _, l := range legs {
		q := decimal.NewFromFloat(l.Quantity)
		switch strings.ToLower(strings.TrimSpace(l.Type)) {
		case "buy":
			net = net.Add(q)
		case "sell":
			net = net.Sub(q)
		}
		if l.Date.After(last) {
			last = l.Date
		}
	}
	return net, last
}

// HasHistory は symbol の価格が1行以上保存済みかを返します。
func (t *CoverageTracker) HasHistory(ctx context.Context, symbol string) (bool, error) {
	_, ok, err := t.repo.LatestPriceDate(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("latest price date: %w", err)
	}
	return ok, nil
}

// Touch は last_updated を today に進めます。記録がない銘柄には何もしません。
func (t *CoverageTracker) Touch(ctx context.Context, symbol string, today time.Time) error {
	cov, ok, err := t.repo.FindCoverage(ctx, symbol)
	if err != nil {
		return fmt.Errorf("find coverage: %w", err)
	}
	if !ok || !cov.LastUpdated.Before(today) {
		return nil
	}
	cov.LastUpdated = today
	return t.repo.SaveCoverage(ctx, cov)
}

// Record は同期成功後の CoverageRecord を保存します。
// earliest_date は小さくなる方向にのみ、last_updated は大きくなる方向にのみ更新します。
func (t *CoverageTracker) Record(ctx context.Context, symbol string, earliest, today time.Time) error {
	cov, ok, err := t.repo.FindCoverage(ctx, symbol)
	if err != nil {
		return fmt.Errorf("find coverage: %w", err)
	}
	next := entity.CoverageRecord{Symbol: symbol, EarliestDate: earliest, LastUpdated: today}
	if ok {
		next = cov
		if !earliest.IsZero() && (next.EarliestDate.IsZero() || earliest.Before(next.EarliestDate)) {
			next.EarliestDate = earliest
		}
		if today.After(next.LastUpdated) {
			next.LastUpdated = today
		}
		if next == cov {
			return nil
		}
	}
	if err := t.repo.SaveCoverage(ctx, next); err != nil {
		return fmt.Errorf("save coverage: %w", err)
	}
	return nil
}

// Find は銘柄の CoverageRecord を返します。
func (t *CoverageTracker) Find(ctx context.Context, symbol string) (entity.CoverageRecord, error) {
	cov, ok, err := t.repo.FindCoverage(ctx, symbol)
	if err != nil {
		return entity.CoverageRecord{}, err
	}
	if !ok {
		return entity.CoverageRecord{}, fmt.Errorf("coverage %s: %w", symbol, ErrNotFound)
	}
	return cov, nil
}
