package usecase

import (
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/shared/retry"
)

// Config はマーケットデータ同期の各コンポーネントに渡される設定です。
// プロセス起動時に一度だけ組み立て、各コンストラクタに値として渡します。
type Config struct {
	// LocalCurrency は保有通貨を為替ペアに変換する際の相手通貨です（例: "TWD"）。
	LocalCurrency string
	// FXCurrencies は為替ペアを生成する通貨の一覧です。
	FXCurrencies []string
	// RefetchToday が true の場合、当日分が既に保存済みでも再取得して上書きします。
	RefetchToday bool
	// EpochDefault は取引履歴から開始日を決められない場合の開始日です。ゼロ値なら開始日なしとして扱います。
	EpochDefault time.Time
	// DivestedEpsilon 以下の純保有数量は売却済みとみなします。
	DivestedEpsilon float64
	// RefreshStrategy は完全リフレッシュ時の反映方法です（replace または swap）。
	RefreshStrategy entity.Strategy
	// BatchSize は1リクエストにまとめる銘柄数です。
	BatchSize int
	// MaxWorkers は並行して実行する取得処理の上限です。
	MaxWorkers int
	// Location は「今日」を判定するタイムゾーンです。
	Location *time.Location
	// RecalcPerUser が true の場合、ユーザーごとに再計算を依頼します。
	RecalcPerUser bool
	// Retry は外部呼び出しすべてに適用されるリトライポリシーです。
	Retry retry.Policy
}

const (
	DefaultBatchSize       = 20
	DefaultMaxWorkers      = 4
	DefaultDivestedEpsilon = 1e-9
	DefaultLocalCurrency   = "TWD"
)

// DefaultFXCurrencies は為替ペアを生成する既定の通貨です。
var DefaultFXCurrencies = []string{"USD", "HKD", "JPY"}

// DefaultConfig は既定値で埋めた Config を返します。
func DefaultConfig() Config {
	return Config{
		LocalCurrency:   DefaultLocalCurrency,
		FXCurrencies:    append([]string(nil), DefaultFXCurrencies...),
		RefetchToday:    true,
		EpochDefault:    time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		DivestedEpsilon: DefaultDivestedEpsilon,
		RefreshStrategy: entity.StrategyReplace,
		BatchSize:       DefaultBatchSize,
		MaxWorkers:      DefaultMaxWorkers,
		Location:        time.UTC,
		Retry:           retry.DefaultPolicy(),
	}
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

func (c Config) maxWorkers() int {
	if c.MaxWorkers <= 0 {
		return 1
	}
	return c.MaxWorkers
}
