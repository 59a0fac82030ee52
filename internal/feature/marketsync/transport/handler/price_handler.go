// Package handler はmarketsyncフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/transport/http/dto"
	"market_sync/internal/feature/marketsync/usecase"
)

// PriceUsecase は読み取りAPIが利用するユースケースのインターフェースです。
type PriceUsecase interface {
	Prices(ctx context.Context, symbol string, from, to time.Time) ([]entity.PricePoint, error)
	Coverage(ctx context.Context, symbol string) (entity.CoverageRecord, error)
	LivePrices(ctx context.Context, csv string) (map[string]entity.Quote, error)
}

// PriceHandler は価格・カバレッジ・ライブ価格のHTTPリクエストを処理します。
type PriceHandler struct {
	uc PriceUsecase
}

// NewPriceHandler は指定されたusecaseでPriceHandlerの新しいインスタンスを生成します。
func NewPriceHandler(uc PriceUsecase) *PriceHandler {
	return &PriceHandler{uc: uc}
}

// GetPrices は保存済みの価格系列を返します。
//
// エンドポイント例:
// GET /prices/:symbol?from=2024-01-01&to=2024-06-30
func (h *PriceHandler) GetPrices(c *gin.Context) {
	symbol := c.Param("symbol")

	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "from must not be after to"})
		return
	}

	prices, err := h.uc.Prices(c.Request.Context(), symbol, from, to)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidSymbols) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("list prices failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load prices"})
		return
	}

	// データをフォーマット
	out := dto.PricesResponse{Symbol: entity.NormalizeSymbol(symbol), Prices: make([]dto.PricePoint, 0, len(prices))}
	for _, p := range prices {
		out.Prices = append(out.Prices, dto.PricePoint{Date: entity.FormatDate(p.Date), Price: p.Price})
	}
	c.JSON(http.StatusOK, out)
}

// GetCoverage は銘柄の保存済み期間を返します。未知の銘柄は404です。
//
// エンドポイント例:
// GET /coverage/:symbol
func (h *PriceHandler) GetCoverage(c *gin.Context) {
	symbol := c.Param("symbol")

	rec, err := h.uc.Coverage(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "coverage not found"})
			return
		}
		slog.Error("find coverage failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load coverage"})
		return
	}

	c.JSON(http.StatusOK, dto.CoverageResponse{
		Symbol:       rec.Symbol,
		EarliestDate: entity.FormatDate(rec.EarliestDate),
		LastUpdated:  entity.FormatDate(rec.LastUpdated),
	})
}

// GetLivePrices はカンマ区切りの銘柄の最新価格を返します。
//
// エンドポイント例:
// GET /live-prices?symbols=AAPL,2330.TW
func (h *PriceHandler) GetLivePrices(c *gin.Context) {
	symbols := c.Query("symbols")
	if symbols == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "symbols is required"})
		return
	}

	quotes, err := h.uc.LivePrices(c.Request.Context(), symbols)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidSymbols) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "market data provider unavailable"})
		return
	}

	out := make(map[string]dto.LivePrice, len(quotes))
	for sym, q := range quotes {
		out[sym] = dto.LivePrice{Price: q.Price, Time: q.Time.Format(time.RFC3339)}
	}
	c.JSON(http.StatusOK, out)
}

// parseDateQuery は YYYY-MM-DD のクエリを読みます。未指定はゼロ値、不正な値は400を返して false です。
func parseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, true
	}
	d, err := time.Parse(entity.DateLayout, v)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: key + " must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}
