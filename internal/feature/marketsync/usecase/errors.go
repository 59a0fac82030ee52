package usecase

import "errors"

var (
	// ErrNoTargets は同期対象の銘柄が1つもないことを示します。
	ErrNoTargets = errors.New("no sync targets")
	// ErrNoStartDate は銘柄の取得開始日を決定できないことを示します。
	ErrNoStartDate = errors.New("no start date can be derived")
	// ErrAmbiguousResponse はレスポンスの行を銘柄に帰属できないことを示します。
	ErrAmbiguousResponse = errors.New("ambiguous provider response")
	// ErrSymbolMissing は複数銘柄レスポンスに要求した銘柄が含まれていないことを示します。
	ErrSymbolMissing = errors.New("symbol missing from provider response")
	// ErrStaleQuote はイントラデイ価格が市場の当日のものではないことを示します。
	ErrStaleQuote = errors.New("stale intraday quote")
	// ErrStagingFailed はステージングテーブルへの書き込みに失敗したことを示します。
	ErrStagingFailed = errors.New("staging write failed")
	// ErrCommitFailed は正式テーブルへの反映に失敗したことを示します。正式テーブルは変更されていません。
	ErrCommitFailed = errors.New("atomic commit failed")
	// ErrSwapVerification はシャドウテーブルの検証に失敗したことを示します。正式テーブルは変更されていません。
	ErrSwapVerification = errors.New("shadow table verification failed")
	// ErrSwapIncomplete はリネームの途中で失敗したことを示します。手動での確認が必要です。
	ErrSwapIncomplete = errors.New("table swap incomplete")
	// ErrNotFound は対象のデータが存在しないことを示します。
	ErrNotFound = errors.New("not found")
)
