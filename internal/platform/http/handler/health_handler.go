// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 2 * time.Second

// Check は依存先（ストア、Redisなど）の疎通を確認する関数です。
type Check func(ctx context.Context) error

// NewHealth は /healthz 用のハンドラーを返します。
// checks がすべて成功すれば 200、1つでも失敗すれば 503 と失敗した依存先を返します。
func NewHealth(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 明示的にキャッシュを防止
		c.Header("Cache-Control", "no-store")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}

		status, body := http.StatusOK, gin.H{"status": "ok"}
		if len(failed) > 0 {
			status, body = http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed}
		}

		if c.Request.Method == http.MethodHead {
			c.Status(status)
			return
		}
		c.JSON(status, body)
	}
}
