package http

import (
	"net"
	"net/http"
	"time"
)

// UserAgent は外部APIへのリクエストに付与される User-Agent です。
const UserAgent = "market_sync/1.0"

// NewHTTPClient は外部API（Twelve Data、D1 ワーカー、再計算エンドポイント）呼び出し用の
// HTTPクライアントを作成します。
//
// 設定:
//   - Proxy: 環境変数（HTTP_PROXYなど）が設定されている場合に使用
//   - Dialer.Timeout: TCP接続タイムアウト
//   - MaxIdleConnsPerHost: 同一ホストへの並行取得ワーカー分の接続を使い回す
//   - Client.Timeout: リクエスト全体のタイムアウト（呼び出し元から渡される）
//
// http.DefaultClient にはタイムアウトがないため使用しないこと。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: &userAgentTransport{next: t}}
}

// userAgentTransport は User-Agent が未設定のリクエストに UserAgent を付与します。
type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTripper は渡されたリクエストを変更してはならない
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return t.next.RoundTrip(r)
}
