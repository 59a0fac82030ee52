package d1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/platform/externalapi"
	"market_sync/internal/shared/retry"
	"market_sync/internal/shared/sqlstore"
)

func fastRetry() retry.Policy {
	p := retry.DefaultPolicy()
	p.Delay = time.Millisecond
	return p
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "secret", WithHTTPClient(server.Client()), WithRetryPolicy(fastRetry()))
}

func TestClient_Query(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var body struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT price FROM price_history WHERE symbol = ?", body.SQL)
		assert.Equal(t, []any{"AAPL"}, body.Params)

		_, _ = w.Write([]byte(`{"results":[{"price":194.03,"date":"2024-06-03"}]}`))
	})

	rows, err := client.Query(context.Background(), "SELECT price FROM price_history WHERE symbol = ?", "AAPL")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	price, err := rows[0].Float("price")
	require.NoError(t, err)
	assert.Equal(t, 194.03, price)
	assert.Equal(t, "2024-06-03", rows[0].String("date"))
}

func TestClient_Query_EmptyParamsAndResults(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `[]`, string(body["params"]))
		_, _ = w.Write([]byte(`{"results":null}`))
	})

	rows, err := client.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestClient_Query_Retry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{
			name:      "success: recovers after a server error",
			statuses:  []int{http.StatusBadGateway, http.StatusOK},
			wantCalls: 2,
		},
		{
			name:      "error: gives up after three attempts",
			statuses:  []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK},
			wantErr:   true,
			wantCalls: 3,
		},
		{
			name:      "error: client error is not retried",
			statuses:  []int{http.StatusBadRequest, http.StatusOK},
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
				_, _ = w.Write([]byte(`{"results":[]}`))
			})

			_, err := client.Query(context.Background(), "SELECT 1")
			if tt.wantErr {
				var apiErr *externalapi.APIError
				assert.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_Batch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch", r.URL.Path)
		var body struct {
			Statements []sqlstore.Statement `json:"statements"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Statements, 2)
		assert.Equal(t, "DELETE FROM price_history_staging WHERE symbol = ?", body.Statements[0].SQL)
		assert.Equal(t, []any{}, body.Statements[1].Params)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	err := client.Batch(context.Background(), []sqlstore.Statement{
		sqlstore.NewStatement("DELETE FROM price_history_staging WHERE symbol = ?", "AAPL"),
		sqlstore.NewStatement("DELETE FROM dividend_history_staging"),
	})
	require.NoError(t, err)
}

func TestClient_Batch_Retry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "error: rate limited batch is retried", status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "error: server error batch is not retried", status: http.StatusInternalServerError, wantCalls: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			err := client.Batch(context.Background(), []sqlstore.Statement{sqlstore.NewStatement("SELECT 1")})
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_Batch_Empty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	assert.NoError(t, client.Batch(context.Background(), nil))
}
