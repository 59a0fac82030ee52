package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
)

var (
	ErrDB       = errors.New("database error")
	ErrProvider = errors.New("provider error")
)

func date(s string) time.Time {
	d, err := entity.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.Delay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	return cfg
}

// mockTargetRepository is a mock implementation of TargetRepository.
type mockTargetRepository struct {
	ListHoldingsFunc         func(ctx context.Context) ([]entity.Holding, error)
	ListBenchmarkSymbolsFunc func(ctx context.Context) ([]string, error)
	ListActiveUserIDsFunc    func(ctx context.Context) ([]string, error)
	ListBenchmarkCalls       int
}

func (m *mockTargetRepository) ListHoldings(ctx context.Context) ([]entity.Holding, error) {
	if m.ListHoldingsFunc != nil {
		return m.ListHoldingsFunc(ctx)
	}
	return nil, nil
}

func (m *mockTargetRepository) ListBenchmarkSymbols(ctx context.Context) ([]string, error) {
	m.ListBenchmarkCalls++
	if m.ListBenchmarkSymbolsFunc != nil {
		return m.ListBenchmarkSymbolsFunc(ctx)
	}
	return nil, nil
}

func (m *mockTargetRepository) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	if m.ListActiveUserIDsFunc != nil {
		return m.ListActiveUserIDsFunc(ctx)
	}
	return nil, nil
}

// fakeCoverageRepository is an in-memory CoverageRepository. Func fields override the defaults.
type fakeCoverageRepository struct {
	mu           sync.Mutex
	latest       map[string]time.Time
	firstTx      map[string]time.Time
	globalFirst  time.Time
	transactions map[string][]entity.TransactionLeg
	coverage     map[string]entity.CoverageRecord

	LatestPriceDateFunc func(ctx context.Context, symbol string) (time.Time, bool, error)
	FindCoverageFunc    func(ctx context.Context, symbol string) (entity.CoverageRecord, bool, error)
	SaveCoverageFunc    func(ctx context.Context, rec entity.CoverageRecord) error
	SaveCoverageCalls   int
}

func newFakeCoverageRepository() *fakeCoverageRepository {
	return &fakeCoverageRepository{
		latest:       map[string]time.Time{},
		firstTx:      map[string]time.Time{},
		transactions: map[string][]entity.TransactionLeg{},
		coverage:     map[string]entity.CoverageRecord{},
	}
}

func (f *fakeCoverageRepository) LatestPriceDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	if f.LatestPriceDateFunc != nil {
		return f.LatestPriceDateFunc(ctx, symbol)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.latest[symbol]
	return d, ok, nil
}

func (f *fakeCoverageRepository) FirstTransactionDate(_ context.Context, symbol string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.firstTx[symbol]
	return d, ok, nil
}

func (f *fakeCoverageRepository) GlobalFirstTransactionDate(context.Context) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.globalFirst, !f.globalFirst.IsZero(), nil
}

func (f *fakeCoverageRepository) ListTransactions(_ context.Context, symbol string) ([]entity.TransactionLeg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transactions[symbol], nil
}

func (f *fakeCoverageRepository) FindCoverage(ctx context.Context, symbol string) (entity.CoverageRecord, bool, error) {
	if f.FindCoverageFunc != nil {
		return f.FindCoverageFunc(ctx, symbol)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coverage[symbol]
	return c, ok, nil
}

func (f *fakeCoverageRepository) SaveCoverage(ctx context.Context, rec entity.CoverageRecord) error {
	f.SaveCoverageCalls++
	if f.SaveCoverageFunc != nil {
		return f.SaveCoverageFunc(ctx, rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coverage[rec.Symbol] = rec
	return nil
}

// mockMarketRepository is a mock implementation of MarketRepository. It is safe for concurrent use.
type mockMarketRepository struct {
	mu                  sync.Mutex
	GetDailySeriesFunc  func(ctx context.Context, symbols []string, start, end time.Time) (entity.SeriesResponse, error)
	GetDividendsFunc    func(ctx context.Context, symbol string, start, end time.Time) ([]entity.DividendEvent, error)
	GetLatestQuoteFunc  func(ctx context.Context, symbol string) (entity.Quote, error)
	GetDailySeriesCalls int
	GetDividendsCalls   int
	SeriesRequests      [][]string
}

func (m *mockMarketRepository) GetDailySeries(ctx context.Context, symbols []string, start, end time.Time) (entity.SeriesResponse, error) {
	m.mu.Lock()
	m.GetDailySeriesCalls++
	m.SeriesRequests = append(m.SeriesRequests, append([]string(nil), symbols...))
	m.mu.Unlock()
	if m.GetDailySeriesFunc != nil {
		return m.GetDailySeriesFunc(ctx, symbols, start, end)
	}
	return nil, errors.New("GetDailySeriesFunc is not implemented")
}

func (m *mockMarketRepository) GetDividends(ctx context.Context, symbol string, start, end time.Time) ([]entity.DividendEvent, error) {
	m.mu.Lock()
	m.GetDividendsCalls++
	m.mu.Unlock()
	if m.GetDividendsFunc != nil {
		return m.GetDividendsFunc(ctx, symbol, start, end)
	}
	return nil, nil
}

func (m *mockMarketRepository) GetLatestQuote(ctx context.Context, symbol string) (entity.Quote, error) {
	if m.GetLatestQuoteFunc != nil {
		return m.GetLatestQuoteFunc(ctx, symbol)
	}
	return entity.Quote{}, errors.New("GetLatestQuoteFunc is not implemented")
}

// mockRateLimiter is a mock implementation of the RateLimiterInterface.
type mockRateLimiter struct {
	mu                sync.Mutex
	WaitIfNeededCalls int
}

func (m *mockRateLimiter) WaitIfNeeded(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitIfNeededCalls++
	return nil
}

// mockStagingRepository is a mock implementation of StagingRepository.
type mockStagingRepository struct {
	ReplaceStagedFunc func(ctx context.Context, data entity.SymbolData) error
	Staged            []entity.SymbolData
}

func (m *mockStagingRepository) ReplaceStaged(ctx context.Context, data entity.SymbolData) error {
	if m.ReplaceStagedFunc != nil {
		if err := m.ReplaceStagedFunc(ctx, data); err != nil {
			return err
		}
	}
	m.Staged = append(m.Staged, data)
	return nil
}

// mockCommitRepository is a mock implementation of CommitRepository.
type mockCommitRepository struct {
	MergeStagedFunc        func(ctx context.Context, symbol string) error
	ReplaceFromStagedFunc  func(ctx context.Context, symbol string) error
	BuildShadowFunc        func(ctx context.Context, kind entity.SeriesKind, shadow string, symbols []string) error
	StagedCountsFunc       func(ctx context.Context, kind entity.SeriesKind, symbols []string) (map[string]int64, error)
	TableCountsFunc        func(ctx context.Context, table string, symbols []string) (map[string]int64, int64, error)
	LiveCountExcludingFunc func(ctx context.Context, kind entity.SeriesKind, symbols []string) (int64, error)
	PromoteShadowFunc      func(ctx context.Context, kind entity.SeriesKind, shadow, backup string) error
	DropTableFunc          func(ctx context.Context, table string) error

	Merged   []string
	Replaced []string
	Promoted []entity.SeriesKind
	Dropped  []string
}

func (m *mockCommitRepository) MergeStaged(ctx context.Context, symbol string) error {
	if m.MergeStagedFunc != nil {
		if err := m.MergeStagedFunc(ctx, symbol); err != nil {
			return err
		}
	}
	m.Merged = append(m.Merged, symbol)
	return nil
}

func (m *mockCommitRepository) ReplaceFromStaged(ctx context.Context, symbol string) error {
	if m.ReplaceFromStagedFunc != nil {
		if err := m.ReplaceFromStagedFunc(ctx, symbol); err != nil {
			return err
		}
	}
	m.Replaced = append(m.Replaced, symbol)
	return nil
}

func (m *mockCommitRepository) BuildShadow(ctx context.Context, kind entity.SeriesKind, shadow string, symbols []string) error {
	if m.BuildShadowFunc != nil {
		return m.BuildShadowFunc(ctx, kind, shadow, symbols)
	}
	return nil
}

func (m *mockCommitRepository) StagedCounts(ctx context.Context, kind entity.SeriesKind, symbols []string) (map[string]int64, error) {
	if m.StagedCountsFunc != nil {
		return m.StagedCountsFunc(ctx, kind, symbols)
	}
	return map[string]int64{}, nil
}

func (m *mockCommitRepository) TableCounts(ctx context.Context, table string, symbols []string) (map[string]int64, int64, error) {
	if m.TableCountsFunc != nil {
		return m.TableCountsFunc(ctx, table, symbols)
	}
	return map[string]int64{}, 0, nil
}

func (m *mockCommitRepository) LiveCountExcluding(ctx context.Context, kind entity.SeriesKind, symbols []string) (int64, error) {
	if m.LiveCountExcludingFunc != nil {
		return m.LiveCountExcludingFunc(ctx, kind, symbols)
	}
	return 0, nil
}

func (m *mockCommitRepository) PromoteShadow(ctx context.Context, kind entity.SeriesKind, shadow, backup string) error {
	if m.PromoteShadowFunc != nil {
		if err := m.PromoteShadowFunc(ctx, kind, shadow, backup); err != nil {
			return err
		}
	}
	m.Promoted = append(m.Promoted, kind)
	return nil
}

func (m *mockCommitRepository) DropTable(ctx context.Context, table string) error {
	m.Dropped = append(m.Dropped, table)
	if m.DropTableFunc != nil {
		return m.DropTableFunc(ctx, table)
	}
	return nil
}

func (m *mockCommitRepository) TableName(kind entity.SeriesKind) string {
	return string(kind) + "_table"
}

// mockGroupRepository is a mock implementation of GroupRepository.
type mockGroupRepository struct {
	MarkDirtyBySymbolsFunc func(ctx context.Context, symbols []string) error
	MarkAllDirtyFunc       func(ctx context.Context) error
	BySymbolsCalls         int
	AllCalls               int
}

func (m *mockGroupRepository) MarkDirtyBySymbols(ctx context.Context, symbols []string) error {
	m.BySymbolsCalls++
	if m.MarkDirtyBySymbolsFunc != nil {
		return m.MarkDirtyBySymbolsFunc(ctx, symbols)
	}
	return nil
}

func (m *mockGroupRepository) MarkAllDirty(ctx context.Context) error {
	m.AllCalls++
	if m.MarkAllDirtyFunc != nil {
		return m.MarkAllDirtyFunc(ctx)
	}
	return nil
}

// mockCacheInvalidator is a mock implementation of CacheInvalidator.
type mockCacheInvalidator struct {
	InvalidateSymbolsFunc func(ctx context.Context, symbols []string) error
	Invalidated           [][]string
}

func (m *mockCacheInvalidator) InvalidateSymbols(ctx context.Context, symbols []string) error {
	m.Invalidated = append(m.Invalidated, symbols)
	if m.InvalidateSymbolsFunc != nil {
		return m.InvalidateSymbolsFunc(ctx, symbols)
	}
	return nil
}

// mockRecalcTrigger is a mock implementation of RecalcTrigger.
type mockRecalcTrigger struct {
	RecalculateAllFunc  func(ctx context.Context, snapshot bool) error
	RecalculateUserFunc func(ctx context.Context, uid string, snapshot bool) error
	AllCalls            int
	UserCalls           []string
	LastSnapshot        bool
}

func (m *mockRecalcTrigger) RecalculateAll(ctx context.Context, snapshot bool) error {
	m.AllCalls++
	m.LastSnapshot = snapshot
	if m.RecalculateAllFunc != nil {
		return m.RecalculateAllFunc(ctx, snapshot)
	}
	return nil
}

func (m *mockRecalcTrigger) RecalculateUser(ctx context.Context, uid string, snapshot bool) error {
	m.UserCalls = append(m.UserCalls, uid)
	m.LastSnapshot = snapshot
	if m.RecalculateUserFunc != nil {
		return m.RecalculateUserFunc(ctx, uid, snapshot)
	}
	return nil
}

// bars builds daily bars with the given closes starting at from.
func bars(from string, closes ...float64) []entity.Bar {
	d := date(from)
	out := make([]entity.Bar, len(closes))
	for i, c := range closes {
		out[i] = entity.Bar{Date: d.AddDate(0, 0, i), Close: c}
	}
	return out
}
