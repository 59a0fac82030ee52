package router

import (
	"github.com/gin-gonic/gin"

	pricehandler "market_sync/internal/feature/marketsync/transport/handler"
	jwtmw "market_sync/internal/platform/jwt"
)

func NewRouter(prices *pricehandler.PriceHandler, health gin.HandlerFunc, jwtSecret string, allowedSubjects ...string) *gin.Engine {
	r := gin.Default()
	// 為替ペア "USD/TWD" は %2F のままパスに含まれる
	r.UseRawPath = true

	// 認証不要
	// 導通確認用
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	// 認証必須のルート
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(jwtSecret, jwtmw.ScopeRead, allowedSubjects...))
	{
		auth.GET("/prices/:symbol", prices.GetPrices)
		auth.GET("/coverage/:symbol", prices.GetCoverage)
		auth.GET("/live-prices", prices.GetLivePrices)
	}

	return r
}
