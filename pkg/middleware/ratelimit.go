package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nanairo/mailgate/pkg/ratelimit"
)

// RateLimit はクライアントIP単位でリクエストを制限するGinミドルウェアを返す。
// familyは保護対象の操作ファミリー名で、制限カウンタのキー空間を分離する
// （コンタクトフォームの連投がニュースレター側の枠を消費しないようにする）。
//
// クライアントIPが解決できない場合は制限をかけずに通し、診断ログを出力する。
// 誤って全リクエストを遮断するより、一時的に保護が弱まる方を選ぶ。
func RateLimit(limiter *ratelimit.Limiter, family string, policy ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			log.Printf("クライアントIPを解決できないためレート制限をスキップ: path=%s", c.Request.URL.Path)
			c.Next()
			return
		}

		if !limiter.Allow(family+":"+ip, policy) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
