// Package d1 is the HTTP client for the D1 SQL worker. It implements sqlstore.Store.
package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"market_sync/internal/platform/externalapi"
	"market_sync/internal/shared/retry"
	"market_sync/internal/shared/sqlstore"
)

const serviceName = "d1"

// Client は D1 ワーカーの /query と /batch を呼び出す sqlstore.Store 実装です。
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retry   retry.Policy
}

var _ sqlstore.Store = (*Client)(nil)

// Option は Client の設定を変更します。
type Option func(*Client)

// WithHTTPClient は使用する HTTP クライアントを差し替えます。
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithRetryPolicy はリトライポリシーを差し替えます。
func WithRetryPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.retry = p }
}

// NewClient は新しい Client を作成します。
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  http.DefaultClient,
		retry:   retry.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type queryResponse struct {
	Results []sqlstore.Row `json:"results"`
}

type batchRequest struct {
	Statements []sqlstore.Statement `json:"statements"`
}

// Query は読み取りクエリを実行します。429 と 5xx はリトライします。
func (c *Client) Query(ctx context.Context, sql string, params ...any) ([]sqlstore.Row, error) {
	if params == nil {
		params = []any{}
	}
	var out queryResponse
	err := c.retry.Do(ctx, "d1 query", func() error {
		out = queryResponse{}
		return classify(c.post(ctx, "/query", queryRequest{SQL: sql, Params: params}, &out))
	})
	if err != nil {
		return nil, err
	}
	if out.Results == nil {
		return []sqlstore.Row{}, nil
	}
	return out.Results, nil
}

// Batch は statements を1つのトランザクションとして実行します。
// 実行前に拒否されたことが明らかな 429 のみリトライします。
func (c *Client) Batch(ctx context.Context, stmts []sqlstore.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	return c.retry.Do(ctx, "d1 batch", func() error {
		err := c.post(ctx, "/batch", batchRequest{Statements: stmts}, nil)
		var apiErr *externalapi.APIError
		if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("d1: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	res, err := c.client.Do(req)
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
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("d1: decode %s: %w", path, err)
	}
	return nil
}

// classify はリトライすべきでないエラーを Permanent にします。
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *externalapi.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return retry.Permanent(err)
	}
	return err
}
