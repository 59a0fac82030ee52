package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"market_sync/internal/feature/marketsync/domain/entity"
)

// StagingRepository はステージングテーブルを扱うリポジトリのインターフェイスです。
type StagingRepository interface {
	// ReplaceStaged は銘柄の既存のステージング行を削除し、data の全行を1つのバッチで挿入します。
	ReplaceStaged(ctx context.Context, data entity.SymbolData) error
}

// StagingWriter は取得したデータを正式テーブルより先にステージングへ書き込みます。
type StagingWriter struct {
	repo StagingRepository
}

// NewStagingWriter は新しい StagingWriter を作成します。
func NewStagingWriter(repo StagingRepository) *StagingWriter {
	return &StagingWriter{repo: repo}
}

// Stage は data をステージングします。失敗した場合、正式テーブルには触れません。
func (w *StagingWriter) Stage(ctx context.Context, data entity.SymbolData) error {
	if err := w.repo.ReplaceStaged(ctx, data); err != nil {
		return fmt.Errorf("%s: %w: %w", data.Symbol, ErrStagingFailed, err)
	}
	slog.Debug("staged rows", "symbol", data.Symbol, "prices", len(data.Prices), "dividends", len(data.Dividends))
	return nil
}
