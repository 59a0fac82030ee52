// Package recalc notifies the portfolio service that market data changed.
package recalc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/externalapi"
	"market_sync/internal/shared/retry"
)

const (
	serviceName = "recalc"

	actionAll  = "recalculate_all_users"
	actionUser = "recalculate"
)

// Client は再計算エンドポイントへ POST する usecase.RecalcTrigger 実装です。
type Client struct {
	url        string
	apiKey     string
	serviceKey string
	client     *http.Client
	retry      retry.Policy
}

var _ usecase.RecalcTrigger = (*Client)(nil)

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

// WithServiceAccountKey は X-Service-Account-Key ヘッダーを付与します。
func WithServiceAccountKey(key string) Option {
	return func(cl *Client) { cl.serviceKey = key }
}

// NewClient は新しい Client を作成します。
func NewClient(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		client: http.DefaultClient,
		retry:  retry.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	Action         string `json:"action"`
	UID            string `json:"uid,omitempty"`
	CreateSnapshot bool   `json:"createSnapshot"`
}

// RecalculateAll は全ユーザーの再計算を依頼します。
func (c *Client) RecalculateAll(ctx context.Context, snapshot bool) error {
	return c.send(ctx, request{Action: actionAll, CreateSnapshot: snapshot})
}

// RecalculateUser は uid の再計算を依頼します。
func (c *Client) RecalculateUser(ctx context.Context, uid string, snapshot bool) error {
	if uid == "" {
		return errors.New("recalc: empty uid")
	}
	return c.send(ctx, request{Action: actionUser, UID: uid, CreateSnapshot: snapshot})
}

func (c *Client) send(ctx context.Context, body request) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("recalc: encode: %w", err)
	}
	return c.retry.Do(ctx, "recalc "+body.Action, func() error {
		err := c.post(ctx, b)
		var apiErr *externalapi.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, b []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.serviceKey != "" {
		req.Header.Set("X-Service-Account-Key", c.serviceKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	return externalapi.CheckResponse(serviceName, req.URL.Path, res)
}
