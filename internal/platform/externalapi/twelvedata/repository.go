package twelvedata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/externalapi"
	"market_sync/internal/platform/externalapi/twelvedata/dto"
)

const (
	serviceName = "twelvedata"

	// maxOutputSize is the largest page the time_series endpoint serves.
	maxOutputSize = 5000

	quoteLayout = "2006-01-02 15:04:05"
)

// TwelveDataMarket はTwelve Data外部APIから日足・配当・最新値を取得するMarketRepository実装です。
type TwelveDataMarket struct {
	cfg    Config
	client *http.Client
}

// TwelveDataMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket は指定された設定とHTTPクライアントでTwelveDataMarketの新しいインスタンスを生成します。
func NewTwelveDataMarket(cfg Config, client *http.Client) *TwelveDataMarket {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &TwelveDataMarket{cfg: cfg, client: client}
}

// GetDailySeries は symbols の日足を取得します。
// 1銘柄の要求にはフラットな形、複数銘柄には銘柄をキーにした形が返るため、
// レスポンスの形を判定して entity.SeriesResponse に変換します。
// 1回の応答は maxOutputSize 本までのため、長い期間は maxOutputSize 日ごとに分割して取得し結合します。
func (t *TwelveDataMarket) GetDailySeries(ctx context.Context, symbols []string, start, end time.Time) (entity.SeriesResponse, error) {
	windows := splitWindow(start, end, maxOutputSize)

	var (
		merged     entity.SeriesResponse
		lastNoData error
	)
	for _, w := range windows {
		resp, err := t.dailySeries(ctx, symbols, w[0], w[1])
		if err != nil {
			// 上場前の期間は 400 (データなし) になる
			if len(windows) > 1 && isNoData(err) {
				lastNoData = err
				continue
			}
			return nil, err
		}
		merged = mergeSeries(symbols, merged, resp)
		if _, ok := merged.(entity.Ambiguous); ok {
			return merged, nil
		}
	}
	if merged == nil {
		return nil, lastNoData
	}
	return merged, nil
}

func (t *TwelveDataMarket) dailySeries(ctx context.Context, symbols []string, start, end time.Time) (entity.SeriesResponse, error) {
	q := url.Values{}
	q.Set("symbol", strings.Join(symbols, ","))
	q.Set("interval", "1day")
	q.Set("outputsize", strconv.Itoa(maxOutputSize))
	q.Set("start_date", entity.FormatDate(start))
	// end_date は排他的に扱われるため翌日を指定
	q.Set("end_date", entity.FormatDate(entity.NextDay(end)))

	var raw json.RawMessage
	if err := t.get(ctx, "/time_series", q, &raw); err != nil {
		return nil, err
	}
	return decodeSeries(symbols, raw)
}

// splitWindow は [start, end] を days 日以下の連続した期間に分割します。
// 日足は1日1本以下のため、各期間の本数は days を超えません。
func splitWindow(start, end time.Time, days int) [][2]time.Time {
	if start.After(end) || days <= 0 {
		return [][2]time.Time{{start, end}}
	}
	var out [][2]time.Time
	for s := start; !s.After(end); {
		e := s.AddDate(0, 0, days-1)
		if e.After(end) {
			e = end
		}
		out = append(out, [2]time.Time{s, e})
		s = entity.NextDay(e)
	}
	return out
}

// mergeSeries は期間ごとの応答を結合します。期間によって形が異なる場合は Ambiguous です。
func mergeSeries(symbols []string, acc, next entity.SeriesResponse) entity.SeriesResponse {
	if acc == nil {
		return next
	}
	switch a := acc.(type) {
	case entity.SingleSymbolTable:
		if n, ok := next.(entity.SingleSymbolTable); ok {
			if a.Symbol == "" {
				a.Symbol = n.Symbol
			}
			a.Table = mergeTable(a.Table, n.Table)
			return a
		}
	case entity.MultiSymbolTable:
		if n, ok := next.(entity.MultiSymbolTable); ok {
			tables := make(map[string]entity.SymbolTable, len(a.Tables))
			for sym, tbl := range a.Tables {
				tables[sym] = tbl
			}
			for sym, tbl := range n.Tables {
				if prev, ok := tables[sym]; ok {
					tables[sym] = mergeTable(prev, tbl)
				} else {
					tables[sym] = tbl
				}
			}
			return entity.MultiSymbolTable{Tables: tables}
		}
	case entity.Ambiguous:
		return a
	}
	if amb, ok := next.(entity.Ambiguous); ok {
		return amb
	}
	return entity.Ambiguous{Requested: symbols, Reason: "response shape changed between date ranges"}
}

// mergeTable は2つの期間の行を結合します。データなしのエラーは他の期間に行があれば無視します。
func mergeTable(a, b entity.SymbolTable) entity.SymbolTable {
	switch {
	case a.Err != nil && !isNoData(a.Err):
		return a
	case b.Err != nil && !isNoData(b.Err):
		return b
	case a.Err != nil:
		return b
	case b.Err != nil:
		return a
	}
	bars := make([]entity.Bar, 0, len(a.Bars)+len(b.Bars))
	bars = append(bars, a.Bars...)
	bars = append(bars, b.Bars...)
	return entity.SymbolTable{Bars: bars}
}

// isNoData は期間内にデータがないことを示す 400 応答かを判定します。
func isNoData(err error) bool {
	var apiErr *externalapi.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// decodeSeries はレスポンスの形を判定します。
// トップレベルに status があれば単一銘柄、全ての値が status を持つオブジェクトなら複数銘柄です。
func decodeSeries(symbols []string, raw json.RawMessage) (entity.SeriesResponse, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return entity.Ambiguous{Requested: symbols, Reason: "response is not an object"}, nil
	}

	if _, ok := top["status"]; ok {
		var body dto.TimeSeriesResponse
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode time series: %w", err)
		}
		if body.Status == "error" {
			return nil, statusError("/time_series", body.Code, body.Message)
		}
		return entity.SingleSymbolTable{Symbol: body.Meta.Symbol, Table: toTable(body)}, nil
	}

	tables := make(map[string]entity.SymbolTable, len(top))
	for sym, v := range top {
		if !bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
			return entity.Ambiguous{Requested: symbols, Reason: fmt.Sprintf("unexpected value under key %q", sym)}, nil
		}
		var body dto.TimeSeriesResponse
		if err := json.Unmarshal(v, &body); err != nil {
			tables[sym] = entity.SymbolTable{Err: fmt.Errorf("decode %s: %w", sym, err)}
			continue
		}
		if body.Status == "" {
			return entity.Ambiguous{Requested: symbols, Reason: fmt.Sprintf("key %q is not a series", sym)}, nil
		}
		if body.Status == "error" {
			tables[sym] = entity.SymbolTable{Err: statusError("/time_series", body.Code, body.Message)}
			continue
		}
		tables[sym] = toTable(body)
	}
	return entity.MultiSymbolTable{Tables: tables}, nil
}

func toTable(body dto.TimeSeriesResponse) entity.SymbolTable {
	bars := make([]entity.Bar, 0, len(body.Values))
	for _, v := range body.Values {
		d, err := entity.ParseDate(v.Datetime)
		if err != nil {
			slog.Warn("skipping bar with invalid date", "symbol", body.Meta.Symbol, "datetime", v.Datetime)
			continue
		}
		bars = append(bars, entity.Bar{
			Date:  d,
			Open:  parseNumber(v.Open),
			High:  parseNumber(v.High),
			Low:   parseNumber(v.Low),
			Close: parseNumber(v.Close),
		})
	}
	return entity.SymbolTable{Bars: bars}
}

// GetDividends は symbol の配当履歴を [start, end] で取得します。
func (t *TwelveDataMarket) GetDividends(ctx context.Context, symbol string, start, end time.Time) ([]entity.DividendEvent, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start_date", entity.FormatDate(start))
	q.Set("end_date", entity.FormatDate(end))

	var body dto.DividendsResponse
	if err := t.get(ctx, "/dividends", q, &body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		return nil, statusError("/dividends", body.Code, body.Message)
	}

	out := make([]entity.DividendEvent, 0, len(body.Dividends))
	for _, d := range body.Dividends {
		date, err := entity.ParseDate(d.ExDate)
		if err != nil {
			slog.Warn("skipping dividend with invalid date", "symbol", symbol, "ex_date", d.ExDate)
			continue
		}
		out = append(out, entity.DividendEvent{Symbol: symbol, Date: date, Amount: d.Amount})
	}
	return out, nil
}

// GetLatestQuote は symbol の直近1分足を取得し、取引所のタイムゾーンの時刻で返します。
func (t *TwelveDataMarket) GetLatestQuote(ctx context.Context, symbol string) (entity.Quote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1min")
	q.Set("outputsize", "1")

	var body dto.TimeSeriesResponse
	if err := t.get(ctx, "/time_series", q, &body); err != nil {
		return entity.Quote{}, err
	}
	if body.Status == "error" {
		return entity.Quote{}, statusError("/time_series", body.Code, body.Message)
	}
	if len(body.Values) == 0 {
		return entity.Quote{}, fmt.Errorf("twelvedata: no quote for %s", symbol)
	}

	loc := time.UTC
	if tz := body.Meta.ExchangeTimezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("unknown exchange timezone, using UTC", "symbol", symbol, "timezone", tz)
		} else {
			loc = l
		}
	}

	v := body.Values[0]
	tm, err := time.ParseInLocation(quoteLayout, v.Datetime, loc)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("twelvedata: parse quote time %q: %w", v.Datetime, err)
	}
	price := parseNumber(v.Close)
	if math.IsNaN(price) {
		return entity.Quote{}, fmt.Errorf("twelvedata: quote for %s has no close", symbol)
	}
	return entity.Quote{Symbol: symbol, Price: price, Time: tm}, nil
}

// get は path に GET リクエストを送り、レスポンスを out にデコードします。
func (t *TwelveDataMarket) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("apikey", t.cfg.APIKey)

	// URLを生成
	u := fmt.Sprintf("%s%s?%s", strings.TrimRight(t.cfg.BaseURL, "/"), path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if err := externalapi.CheckResponse(serviceName, path, res); err != nil {
		return err
	}

	// JSONレスポンスをDTOにデコード
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("twelvedata: decode %s: %w", path, err)
	}
	return nil
}

// statusError は本文の status:error を APIError に変換します。
// code が無い場合は再試行しない 400 として扱います。
func statusError(path string, code int, message string) error {
	if code == 0 {
		code = http.StatusBadRequest
	}
	return &externalapi.APIError{Service: serviceName, Endpoint: path, StatusCode: code, Body: message}
}

// parseNumber は空や不正な値を NaN として返します。
func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
