package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// WebhookRateLimit guards the inbound payment webhook against a
// misbehaving upstream retrier hammering the endpoint. It is a single
// shared bucket, not per-IP: gateways call from a small, often
// rotating set of addresses, so per-IP buckets would just let a
// retry storm spread across them.
func WebhookRateLimit(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "too many webhook deliveries",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
